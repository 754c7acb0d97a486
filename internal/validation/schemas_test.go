package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *SchemaValidator {
	t.Helper()
	sv, err := NewDefaultSchemaValidator()
	require.NoError(t, err)
	return sv
}

func TestNewDefaultSchemaValidator(t *testing.T) {
	sv := newValidator(t)

	assert.Equal(t, []string{AnswerRequestSchema, DimensionRegistrySchema, FeedbackRequestSchema, QuestionBankSchema}, sv.GetAvailableSchemas())
	assert.True(t, sv.SchemaExists(QuestionBankSchema))
	assert.False(t, sv.SchemaExists("content-item"))
}

func TestSchemaValidator_Requests(t *testing.T) {
	sv := newValidator(t)

	tests := []struct {
		name   string
		schema string
		body   string
		valid  bool
	}{
		{"answer ok", AnswerRequestSchema, `{"question_id":"palette","option_id":"minimal"}`, true},
		{"answer missing option", AnswerRequestSchema, `{"question_id":"palette"}`, false},
		{"feedback rating", FeedbackRequestSchema, `{"item_id":"a","rating":8}`, true},
		{"feedback reaction", FeedbackRequestSchema, `{"item_id":"a","reaction":"like"}`, true},
		{"feedback without value", FeedbackRequestSchema, `{"item_id":"a"}`, false},
		{"feedback rating out of range", FeedbackRequestSchema, `{"item_id":"a","rating":11}`, false},
		{"feedback unknown reaction", FeedbackRequestSchema, `{"item_id":"a","reaction":"meh"}`, false},
		{"unknown schema", "content-item", `{}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sv.Validate(tt.schema, tt.body)
			assert.Equal(t, tt.valid, result.Valid, "%+v", result.Errors)
			if !tt.valid {
				assert.Error(t, result.Err())
				assert.NotNil(t, result.ToAPIError())
			} else {
				assert.NoError(t, result.Err())
				assert.Nil(t, result.ToAPIError())
			}
		})
	}
}

func TestSchemaValidator_ParseDimensions(t *testing.T) {
	sv := newValidator(t)

	dims, err := sv.ParseDimensions([]byte(`{"dimensions":[
		{"key":"pacePreference","min":0,"max":10,"importance":0.5,"description":"pace"},
		{"key":"emotionalValence","min":-5,"max":5,"importance":0.7}
	]}`))
	require.NoError(t, err)
	require.Len(t, dims, 2)
	assert.Equal(t, "emotionalValence", dims[1].Key)
	assert.InDelta(t, -5.0, dims[1].Min, 1e-9)

	_, err = sv.ParseDimensions([]byte(`{"dimensions":[{"key":"x","min":0,"max":1,"importance":3}]}`))
	assert.Error(t, err)

	_, err = sv.ParseDimensions([]byte(`{"dimensions":[]}`))
	assert.Error(t, err)
}

func TestSchemaValidator_LoadQuestionsFile(t *testing.T) {
	sv := newValidator(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "questions.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"questions":[{
		"id":"q1","text":"Pick one","options":[
			{"id":"a","text":"A","effects":[{"dimension":"pacePreference","target":8,"confidence":0.6}]},
			{"id":"b","text":"B","effects":[]}
		]}]}`), 0o600))

	questions, err := sv.LoadQuestionsFile(file)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.Len(t, questions[0].Options, 2)
	assert.InDelta(t, 8.0, questions[0].Options[0].Effects[0].Target, 1e-9)

	_, err = sv.LoadQuestionsFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
