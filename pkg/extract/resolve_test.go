package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "Acetaminophen", FirstNonEmpty([]any{"", "Acetaminophen", "APAP"}))
	assert.Equal(t, "APAP", FirstNonEmpty([]any{"", "   ", "APAP"}))
	assert.Equal(t, "first", FirstNonEmpty([]any{"first", "second"}))
	assert.Equal(t, "", FirstNonEmpty([]any{"", ""}))
	assert.Equal(t, "", FirstNonEmpty(nil))
	assert.Equal(t, "", FirstNonEmpty([]any{}))
}

func TestFirstNonEmptySkipsNonStrings(t *testing.T) {
	assert.Equal(t, "ok", FirstNonEmpty([]any{42.0, nil, "ok"}))
}

func TestFirstString(t *testing.T) {
	assert.Equal(t, "IBUPROFEN", FirstString([]any{"IBUPROFEN", "ADVIL"}))
	assert.Equal(t, "", FirstString(nil))
	assert.Equal(t, "", FirstString([]any{}))
	assert.Equal(t, "", FirstString([]any{12.0}))
}

func TestAsString(t *testing.T) {
	assert.Equal(t, "1", AsString("1"))
	assert.Equal(t, "2", AsString(2.0))
	assert.Equal(t, "2.5", AsString(2.5))
	assert.Equal(t, "", AsString(nil))
	assert.Equal(t, "", AsString([]any{"x"}))
}

func TestEvaluatorNestedAccess(t *testing.T) {
	e := NewEvaluator()

	data := map[string]any{
		"patient": map[string]any{
			"drug": []any{
				map[string]any{"medicinalproduct": "TYLENOL"},
			},
		},
	}

	got, err := e.EvaluateString("patient.drug[0].medicinalproduct", data)
	assert.NoError(t, err)
	assert.Equal(t, "TYLENOL", got)

	// Absent paths resolve to empty, never an error
	got, err = e.EvaluateString("patient.reaction[0].reactionmeddrapt", data)
	assert.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestEvaluatorSlice(t *testing.T) {
	e := NewEvaluator()

	data := map[string]any{
		"openfda": map[string]any{
			"generic_name": []any{"", "ACETAMINOPHEN"},
		},
	}

	got, err := e.EvaluateSlice("openfda.generic_name", data)
	assert.NoError(t, err)
	assert.Equal(t, []any{"", "ACETAMINOPHEN"}, got)
}

func TestEvaluatorInvalidExpression(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Evaluate("][bogus", map[string]any{})
	assert.Error(t, err)
}
