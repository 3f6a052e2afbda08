package n8n

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(upstream *httptest.Server) *Client {
	return NewClient(Options{
		WebhookURL:    upstream.URL + "/webhook/upload-code",
		HealthURL:     upstream.URL + "/health",
		Timeout:       5 * time.Second,
		HealthTimeout: time.Second,
	})
}

func TestInvokeAppliesPayloadDefaults(t *testing.T) {
	var received ChatPayload
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`{"response":"ok"}`))
	}))
	defer upstream.Close()

	_, err := newTestClient(upstream).Invoke(context.Background(), ChatPayload{})
	require.NoError(t, err)

	assert.Equal(t, "", received.ChatInput)
	assert.NotNil(t, received.Files)
	assert.Empty(t, received.Files)
	assert.Equal(t, DefaultSessionID, received.SessionID)
}

func TestInvokePassesFilesThrough(t *testing.T) {
	var received ChatPayload
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`{"response":"ok"}`))
	}))
	defer upstream.Close()

	files := []FileAttachment{{Name: "main.go", Content: "package main", Size: 12, Type: "text/x-go"}}
	_, err := newTestClient(upstream).Invoke(context.Background(), ChatPayload{
		ChatInput: "review this",
		Files:     files,
		SessionID: "abc",
	})
	require.NoError(t, err)

	assert.Equal(t, "review this", received.ChatInput)
	assert.Equal(t, files, received.Files)
	assert.Equal(t, "abc", received.SessionID)
}

func TestInvokeReturnsRawBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"hello back"}`))
	}))
	defer upstream.Close()

	reply, err := newTestClient(upstream).Invoke(context.Background(), ChatPayload{ChatInput: "hi"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, reply.StatusCode)
	assert.JSONEq(t, `{"response":"hello back"}`, string(reply.Body))
}

func TestInvokeClassifiesHTTPError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"message":"workflow crashed"}`))
	}))
	defer upstream.Close()

	_, err := newTestClient(upstream).Invoke(context.Background(), ChatPayload{})
	require.Error(t, err)

	upstreamErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindHTTP, upstreamErr.Kind)
	assert.Equal(t, http.StatusBadGateway, upstreamErr.StatusCode)
	assert.Equal(t, "Bad Gateway", upstreamErr.Status)
	assert.JSONEq(t, `{"message":"workflow crashed"}`, string(upstreamErr.Body))
}

func TestInvokeClassifiesUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestClient(upstream)
	upstream.Close()

	_, err := client.Invoke(context.Background(), ChatPayload{})
	require.Error(t, err)

	upstreamErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindUnreachable, upstreamErr.Kind)
	assert.Error(t, upstreamErr.Unwrap())
}

func TestHealthReturnsStatusCode(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	code, err := newTestClient(upstream).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
}

func TestHealthFailsWhenDown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestClient(upstream)
	upstream.Close()

	_, err := client.Health(context.Background())
	assert.Error(t, err)
}
