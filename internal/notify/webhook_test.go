package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebhookClient_NotifyPriorityChange(t *testing.T) {
	var received PriorityChangeNotification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewWebhookClient(srv.URL, zap.NewNop())
	err := client.NotifyPriorityChange(context.Background(), "case-1", "NORMAL", "URGENT")

	require.NoError(t, err)
	assert.Equal(t, "case-1", received.CaseID)
	assert.Equal(t, "NORMAL", received.OldPriority)
	assert.Equal(t, "URGENT", received.NewPriority)
	assert.Equal(t, "The priority of your case has changed to URGENT", received.Message)
}

func TestWebhookClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewWebhookClient(srv.URL, zap.NewNop())
	err := client.NotifyPriorityChange(context.Background(), "case-1", "NORMAL", "URGENT")

	assert.Error(t, err)
}
