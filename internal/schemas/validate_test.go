package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"name": {"type": "string"},
		"count": {"type": "integer"}
	},
	"required": ["name"]
}`

func TestValidateJSONString_Valid(t *testing.T) {
	err := ValidateJSONString(testSchema, `{"name": "quiz", "count": 3}`)
	assert.NoError(t, err)
}

func TestValidateJSONString_MissingRequired(t *testing.T) {
	err := ValidateJSONString(testSchema, `{"count": 3}`)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	require.NotEmpty(t, valErr.Errors)
	assert.Contains(t, err.Error(), "name")
}

func TestValidateJSONString_TypeMismatch(t *testing.T) {
	err := ValidateJSONString(testSchema, `{"name": "quiz", "count": "three"}`)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestValidateJSONString_UnknownField(t *testing.T) {
	err := ValidateJSONString(testSchema, `{"name": "quiz", "extra": true}`)
	require.Error(t, err)
}

func TestValidateJSONString_BrokenSchema(t *testing.T) {
	err := ValidateJSONString(`{"type": nonsense}`, `{}`)
	require.Error(t, err)

	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestValidateJSONString_BrokenDocument(t *testing.T) {
	err := ValidateJSONString(testSchema, `{broken`)
	require.Error(t, err)
}
