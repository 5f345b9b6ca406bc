package mail

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendGrid_Send(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sg, err := NewSendGrid(SendGridConfig{APIKey: "key", BaseURL: srv.URL, FromEmail: "noreply@example.org"}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	err = sg.Send(context.Background(), Message{To: "a@example.org", Subject: "Hi", Body: "hello"})
	require.NoError(t, err)

	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, "a@example.org", got.Personalizations[0].To[0].Email)
	assert.Equal(t, "noreply@example.org", got.From.Email)
	assert.Equal(t, "Hi", got.Subject)
	assert.Equal(t, []content{{Type: "text/plain", Value: "hello"}}, got.Content)
}

func TestSendGrid_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	sg, err := NewSendGrid(SendGridConfig{APIKey: "key", BaseURL: srv.URL, FromEmail: "x@example.org", MaxRetries: 3}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	err = sg.Send(context.Background(), Message{To: "a@example.org"})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendGrid_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sg, err := NewSendGrid(SendGridConfig{APIKey: "key", BaseURL: srv.URL, FromEmail: "x@example.org", MaxRetries: 1, Timeout: 5 * time.Second}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	require.NoError(t, sg.Send(context.Background(), Message{To: "a@example.org"}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewSendGrid_RequiresKey(t *testing.T) {
	_, err := NewSendGrid(SendGridConfig{FromEmail: "x@example.org"}, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Send(context.Background(), Message{To: "a"}))
	assert.Len(t, r.Sent(), 1)
}
