package models

// Dimension is one axis of the psychological trait space.
type Dimension struct {
	Key         string  `json:"key"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Importance  float64 `json:"importance"`
	Description string  `json:"description"`
}

// Span returns Max - Min.
func (d Dimension) Span() float64 {
	return d.Max - d.Min
}

// Midpoint returns the centre of the dimension's range.
func (d Dimension) Midpoint() float64 {
	return d.Min + d.Span()/2
}

// Clamp forces v into [Min, Max].
func (d Dimension) Clamp(v float64) float64 {
	if v < d.Min {
		return d.Min
	}
	if v > d.Max {
		return d.Max
	}
	return v
}

// Normalize maps v onto [0,1] using the dimension bounds. Out of range values
// are clamped first.
func (d Dimension) Normalize(v float64) float64 {
	return (d.Clamp(v) - d.Min) / d.Span()
}
