package apidoc

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleSummarizeRequest_PassesValidation(t *testing.T) {
	doc, err := Load()
	require.NoError(t, err)

	for seed := uint64(1); seed <= 20; seed++ {
		body, err := doc.SampleSummarizeRequest(NewSampler(seed))
		require.NoError(t, err)
		require.NoError(t, doc.ValidateSummarizeRequest(body), string(body))

		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		assert.NotEmpty(t, req["meeting_id"])
		assert.NotEmpty(t, req["title"])
		assert.Contains(t, req["transcript"], ": ")
	}
}

func TestSample_ResponseSchemas(t *testing.T) {
	doc, err := Load()
	require.NoError(t, err)

	for _, name := range []string{"SummarizeResponse", "HealthReport", "ServiceInfo", "ErrorResponse"} {
		t.Run(name, func(t *testing.T) {
			value, err := doc.Sample(name, NewSampler(7))
			require.NoError(t, err)

			// Round-trip so numbers take their decoded JSON form.
			raw, err := json.Marshal(value)
			require.NoError(t, err)
			var decoded any
			require.NoError(t, json.Unmarshal(raw, &decoded))

			assert.NoError(t, doc.Validate(name, decoded))
		})
	}
}

func TestSample_ConstraintsAndFormats(t *testing.T) {
	const document = `
openapi: 3.0.3
info: {title: t, version: "1"}
paths: {}
components:
  schemas:
    Ticket:
      type: object
      required: [code, email, day, priority, score, tags]
      properties:
        code: {type: string, pattern: "^[A-Z]{3}-[0-9]{4}$"}
        email: {type: string, format: email}
        day: {type: string, format: date}
        priority: {type: string, enum: [low, high]}
        score: {type: integer, minimum: 5, maximum: 6}
        ratio: {type: number, minimum: 0, maximum: 1}
        short: {type: string, minLength: 3, maxLength: 3}
        tags: {type: array, minItems: 3, items: {type: string}}
`
	doc, err := LoadFromData([]byte(document))
	require.NoError(t, err)

	value, err := doc.Sample("Ticket", NewSampler(42))
	require.NoError(t, err)
	ticket := value.(map[string]any)

	assert.Regexp(t, regexp.MustCompile(`^[A-Z]{3}-[0-9]{4}$`), ticket["code"])
	assert.Contains(t, []any{"low", "high"}, ticket["priority"])
	assert.Contains(t, []int{5, 6}, ticket["score"])
	assert.Len(t, ticket["short"], 3)
	assert.Len(t, ticket["tags"], 3)

	raw, err := json.Marshal(value)
	require.NoError(t, err)
	var decoded any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.NoError(t, doc.Validate("Ticket", decoded))

	_, err = doc.Sample("Missing", NewSampler(1))
	assert.Error(t, err)
}
