package moderation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// geminiStub serves canned generateContent responses.
func geminiStub(t *testing.T, calls *atomic.Int32, status int, innerText string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("x-goog-api-key"))

		w.WriteHeader(status)
		if status != http.StatusOK {
			return
		}
		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": innerText}}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClassifier(url string) *GeminiClassifier {
	return NewGeminiClassifier(url, "gemini-3-flash-preview", "test-key", zap.NewNop())
}

func TestClassifyApprove(t *testing.T) {
	var calls atomic.Int32
	srv := geminiStub(t, &calls, http.StatusOK, `{"verdict":"APPROVE","reason":"wholesome"}`)
	defer srv.Close()

	d, err := newTestClassifier(srv.URL).Classify(context.Background(), "Lost my charger in hostel block C", "if anyone found it pls dm")
	require.NoError(t, err)
	assert.Equal(t, VerdictApprove, d.Verdict)
	assert.Equal(t, "wholesome", d.Reason)
	assert.Equal(t, int32(1), calls.Load(), "classification must be invoked exactly once")
}

func TestClassifyReject(t *testing.T) {
	var calls atomic.Int32
	srv := geminiStub(t, &calls, http.StatusOK, `{"verdict":"REJECT","reason":"threat of violence"}`)
	defer srv.Close()

	d, err := newTestClassifier(srv.URL).Classify(context.Background(), "t", "c")
	require.NoError(t, err)
	assert.Equal(t, VerdictReject, d.Verdict)
	assert.Equal(t, "threat of violence", d.Reason)
}

func TestClassifyUnparseableTextFallsBackToFlag(t *testing.T) {
	var calls atomic.Int32
	srv := geminiStub(t, &calls, http.StatusOK, "I am not JSON at all")
	defer srv.Close()

	d, err := newTestClassifier(srv.URL).Classify(context.Background(), "t", "c")
	require.NoError(t, err)
	assert.Equal(t, VerdictFlag, d.Verdict)
	assert.Equal(t, reasonInconclusive, d.Reason)
}

func TestClassifyUnknownVerdictFallsBackToFlag(t *testing.T) {
	var calls atomic.Int32
	srv := geminiStub(t, &calls, http.StatusOK, `{"verdict":"SHRUG","reason":"dunno"}`)
	defer srv.Close()

	d, err := newTestClassifier(srv.URL).Classify(context.Background(), "t", "c")
	require.NoError(t, err)
	assert.Equal(t, VerdictFlag, d.Verdict)
	assert.Equal(t, reasonInvalidVerdict, d.Reason)
}

func TestClassifyEmptyCandidatesFallsBackToFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	d, err := newTestClassifier(srv.URL).Classify(context.Background(), "t", "c")
	require.NoError(t, err)
	assert.Equal(t, VerdictFlag, d.Verdict)
}

func TestClassifyGarbageEnvelopeFallsBackToFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	d, err := newTestClassifier(srv.URL).Classify(context.Background(), "t", "c")
	require.NoError(t, err)
	assert.Equal(t, VerdictFlag, d.Verdict)
}

func TestClassifyServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 501 is not retried by the client, keeping this test fast.
		w.WriteHeader(http.StatusNotImplemented)
	}))
	defer srv.Close()

	_, err := newTestClassifier(srv.URL).Classify(context.Background(), "t", "c")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClassifyUnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	_, err := newTestClassifier(srv.URL).Classify(context.Background(), "t", "c")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClassifyMissingAPIKeyIsUnavailable(t *testing.T) {
	c := NewGeminiClassifier("http://localhost:0", "m", "", zap.NewNop())
	_, err := c.Classify(context.Background(), "t", "c")
	assert.ErrorIs(t, err, ErrUnavailable)
}
