package apidoc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	doc, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", doc.Version())

	var rendered map[string]any
	require.NoError(t, json.Unmarshal(doc.JSON(), &rendered))
	assert.Equal(t, "3.0.3", rendered["openapi"])
}

func TestLoadFromData(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "minimal document",
			data: `{"openapi":"3.0.3","info":{"title":"t","version":"1"},"paths":{}}`,
		},
		{
			name:    "not a document",
			data:    `not: [valid`,
			wantErr: true,
		},
		{
			name:    "missing info",
			data:    `{"openapi":"3.0.3","paths":{}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromData([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRoutes(t *testing.T) {
	doc, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []Route{
		{Path: "/", Method: "GET", OperationID: "getServiceInfo"},
		{Path: "/agent/summarize", Method: "POST", OperationID: "summarizeMeeting"},
		{Path: "/health", Method: "GET", OperationID: "getHealth"},
		{Path: "/openapi.json", Method: "GET", OperationID: "getOpenAPIDocument"},
		{Path: "/ready", Method: "GET", OperationID: "getReadiness"},
		{Path: "/summarize", Method: "POST", OperationID: "summarizeMeetingAlias"},
	}, doc.Routes())
}

func TestValidateSummarizeRequest(t *testing.T) {
	doc, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "complete request",
			body: `{"task_id":"t1","meeting_id":"m1","title":"Sync","transcript":"hello","additional_context":{"account":"Acme"}}`,
		},
		{
			name: "task id optional",
			body: `{"meeting_id":"m1","title":"Sync","transcript":"hello"}`,
		},
		{
			name: "null context",
			body: `{"meeting_id":"m1","title":"Sync","transcript":"hello","additional_context":null}`,
		},
		{
			name:    "missing transcript",
			body:    `{"meeting_id":"m1","title":"Sync"}`,
			wantErr: true,
		},
		{
			name:    "empty title",
			body:    `{"meeting_id":"m1","title":"","transcript":"hello"}`,
			wantErr: true,
		},
		{
			name:    "wrong type",
			body:    `{"meeting_id":42,"title":"Sync","transcript":"hello"}`,
			wantErr: true,
		},
		{
			name:    "array body",
			body:    `[]`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			body:    `{"meeting_id":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := doc.ValidateSummarizeRequest([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSchemaViolation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	doc, err := Load()
	require.NoError(t, err)

	err = doc.Validate("Nope", map[string]any{})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSchemaViolation)
}
