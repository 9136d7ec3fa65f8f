package agentclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	apperrors "agentchat/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestCallPostsJSONWithHeaders(t *testing.T) {
	var gotBody map[string]any
	var gotHeader, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotHeader = r.Header.Get("X-Api-Key")
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, `{"message":"hi"}`)
	}))
	defer server.Close()

	client := New(time.Second)
	resp, err := client.Call(context.Background(), Request{
		AgentID: "agent-1",
		URL:     server.URL,
		Headers: map[string]string{"X-Api-Key": "secret", "Content-Type": "text/plain"},
		Body:    map[string]any{"query": "hello", "UID": "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"message":"hi"}`, string(resp.Body))
	assert.False(t, resp.FellBack)
	assert.Equal(t, "secret", gotHeader)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "hello", gotBody["query"])
}

func TestCallNon2xxIsTerminal(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(time.Second).Call(context.Background(), Request{URL: server.URL})
	var statusErr *apperrors.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "boom", statusErr.Body)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCallFallsBackOnConnectionRefused(t *testing.T) {
	var attempts []string
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		attempts = append(attempts, req.URL.String())
		if req.URL.Hostname() == "localhost" {
			return nil, &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"message":"ok"}`)),
			Header:     make(http.Header),
		}, nil
	})

	client := New(time.Second, WithHTTPClient(&http.Client{Transport: transport}))
	resp, err := client.Call(context.Background(), Request{URL: "http://localhost:5678/webhook/abc"})
	require.NoError(t, err)
	assert.True(t, resp.FellBack)
	assert.Equal(t, "http://127.0.0.1:5678/webhook/abc", resp.URL)
	assert.Equal(t, []string{"http://localhost:5678/webhook/abc", "http://127.0.0.1:5678/webhook/abc"}, attempts)
}

func TestCallFallbackFailureIsTerminal(t *testing.T) {
	var calls atomic.Int32
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	})

	client := New(time.Second, WithHTTPClient(&http.Client{Transport: transport}))
	_, err := client.Call(context.Background(), Request{URL: "https://agents.example.com/hook"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConnection, apperrors.CodeOf(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestCallDoesNotFallBackOnTimeout(t *testing.T) {
	var calls atomic.Int32
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, context.DeadlineExceeded
	})

	client := New(time.Second, WithHTTPClient(&http.Client{Transport: transport}))
	_, err := client.Call(context.Background(), Request{URL: "http://localhost:5678/hook"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeTimeout, apperrors.CodeOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCallFallsBackOnceOnCertificateError(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"secure"}`)
	}))
	defer server.Close()

	var calls atomic.Int32
	base := http.DefaultTransport.(*http.Transport).Clone()
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return base.RoundTrip(req)
	})

	client := New(time.Second, WithHTTPClient(&http.Client{Transport: transport}))
	_, err := client.Call(context.Background(), Request{URL: server.URL})
	require.Error(t, err)
	// The retry goes to https://localhost, which fails verification again or
	// is refused when localhost does not resolve to 127.0.0.1.
	assert.True(t, apperrors.CodeOf(err).AllowsHostFallback(), "code %s", apperrors.CodeOf(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestCallRejectsOversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", 64))
	}))
	defer server.Close()

	_, err := New(time.Second, WithMaxResponseBytes(16)).Call(context.Background(), Request{URL: server.URL})
	var permanent *apperrors.PermanentError
	require.True(t, errors.As(err, &permanent), "expected permanent error, got %v", err)
}

func TestAlternateURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:5678/webhook/x":  "http://127.0.0.1:5678/webhook/x",
		"https://127.0.0.1:5678/webhook/x": "https://localhost:5678/webhook/x",
		"https://agents.example.com/a?b=c": "http://agents.example.com/a?b=c",
		"http://agents.example.com/a":      "https://agents.example.com/a",
		"http://localhost/hook":            "http://127.0.0.1/hook",
	}
	for in, want := range cases {
		got, ok := AlternateURL(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := AlternateURL("not a url")
	assert.False(t, ok)
}
