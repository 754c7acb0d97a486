package models

// Item is a catalog entry scored against profiles.
type Item struct {
	ID         string             `json:"id" db:"id"`
	Title      string             `json:"title" db:"title"`
	Attributes map[string]float64 `json:"attributes" db:"attributes"`
	Popularity float64            `json:"popularity" db:"popularity"` // 0-100
	Rating     float64            `json:"rating" db:"rating"`
	Genres     []string           `json:"genres,omitempty" db:"genres"`
	BucketKey  string             `json:"bucket_key,omitempty" db:"-"`

	// fingerprint of the feature vector BucketKey was derived from
	bucketSource string
}

// CachedBucketKey returns the cached key when it was computed from the same
// feature fingerprint.
func (i *Item) CachedBucketKey(fingerprint string) (string, bool) {
	if i.BucketKey == "" || i.bucketSource != fingerprint {
		return "", false
	}
	return i.BucketKey, true
}

// SetBucketKey records key together with the fingerprint it was derived from.
func (i *Item) SetBucketKey(key, fingerprint string) {
	i.BucketKey = key
	i.bucketSource = fingerprint
}

// Attribute returns the attribute value and whether it is present.
func (i *Item) Attribute(key string) (float64, bool) {
	v, ok := i.Attributes[key]
	return v, ok
}
