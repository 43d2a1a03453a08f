package orchestrator

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

func TestHTTPInvokerPlainTextResponse(t *testing.T) {
	var gotReq invokeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("SPF answered."))
	}))
	defer srv.Close()

	invoker := NewHTTPInvoker(srv.URL, time.Second, nil)
	out, err := invoker.Invoke(context.Background(), "dns_specialist", map[string]any{"query": "spf"})
	require.NoError(t, err)
	assert.Equal(t, "SPF answered.", out)
	assert.Equal(t, "dns_specialist", gotReq.SpecialistID)
	assert.Equal(t, "spf", gotReq.Context["query"])
}

func TestHTTPInvokerJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(invokeResponse{Output: "HANDOFF DECLARATION:\nTo: email_specialist\nReason: mail\n"})
	}))
	defer srv.Close()

	invoker := NewHTTPInvoker(srv.URL, time.Second, nil)
	out, err := invoker.Invoke(context.Background(), "dns_specialist", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "HANDOFF DECLARATION:")
}

func TestHTTPInvokerNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "specialist crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	invoker := NewHTTPInvoker(srv.URL, time.Second, nil)
	_, err := invoker.Invoke(context.Background(), "dns_specialist", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestHTTPInvokerTimeoutIsError(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	invoker := NewHTTPInvoker(srv.URL, 50*time.Millisecond, nil)
	_, err := invoker.Invoke(context.Background(), "dns_specialist", nil)
	require.Error(t, err)
}

func TestHTTPInvokerRespectsContext(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	invoker := NewHTTPInvoker(srv.URL, time.Minute, nil)
	_, err := invoker.Invoke(ctx, "dns_specialist", nil)
	require.Error(t, err)
}
