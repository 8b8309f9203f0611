package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskRequest_Validate(t *testing.T) {
	bad := 1.5
	tests := []struct {
		name    string
		req     *AskRequest
		wantErr bool
	}{
		{"empty question", &AskRequest{}, true},
		{"valid question", &AskRequest{Question: "show employees"}, false},
		{"negative top_k", &AskRequest{Question: "x", TopK: -1}, true},
		{"threshold out of range", &AskRequest{Question: "x", Threshold: &bad}, true},
		{"caps top_k", &AskRequest{Question: "x", TopK: 50}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.LessOrEqual(t, tt.req.TopK, 20)
		})
	}
}

func TestSearchQuery_Validate(t *testing.T) {
	q := &SearchQuery{Query: "x"}
	require.NoError(t, q.Validate())
	assert.Equal(t, 3, q.Limit)

	q = &SearchQuery{Query: "x", Limit: 500}
	require.NoError(t, q.Validate())
	assert.Equal(t, 100, q.Limit)

	assert.Error(t, (&SearchQuery{}).Validate())
}
