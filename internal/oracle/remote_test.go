package oracle

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nlc/internal/ipm"
)

func modelServer(t *testing.T, status int, answer string, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req generateRequest
		assert.NoError(t, json.Unmarshal(body, &req))
		if assert.Len(t, req.Contents, 1) {
			assert.Contains(t, req.Contents[0].Parts[0].Text, "Sentence: Print 7")
		}

		if status != http.StatusOK {
			http.Error(w, "boom", status)
			return
		}
		resp := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": answer}}},
			}},
		}
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteInterpret(t *testing.T) {
	var calls int32
	answer := "```json\n[{\"confidence\": 0.97, \"fragment\": {\"kind\": \"print\", \"value\": {\"int\": 7}}}]\n```"
	srv := modelServer(t, http.StatusOK, answer, &calls)

	r := NewRemote(srv.URL, "test-model", "secret")
	sess, err := r.Open(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	cands, err := sess.Interpret(context.Background(), "Print 7", Snapshot{})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.InDelta(t, 0.97, cands[0].Confidence, 1e-9)
	assert.Equal(t, &ipm.Print{Value: ipm.Int(7)}, cands[0].Fragment.Stmt)
	assert.EqualValues(t, 1, calls)
}

func TestRemoteUnsupportedAnswer(t *testing.T) {
	var calls int32
	srv := modelServer(t, http.StatusOK, `{"unsupported": true}`, &calls)

	sess, err := NewRemote(srv.URL, "test-model", "secret").Open(context.Background())
	require.NoError(t, err)
	_, err = sess.Interpret(context.Background(), "Print 7", Snapshot{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRemoteMalformedAnswer(t *testing.T) {
	var calls int32
	srv := modelServer(t, http.StatusOK, "I think you mean print", &calls)

	sess, err := NewRemote(srv.URL, "test-model", "secret").Open(context.Background())
	require.NoError(t, err)
	_, err = sess.Interpret(context.Background(), "Print 7", Snapshot{})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestRemoteFailuresOpenBreaker(t *testing.T) {
	var calls int32
	srv := modelServer(t, http.StatusInternalServerError, "", &calls)

	r := NewRemote(srv.URL, "test-model", "secret")
	sess, err := r.Open(context.Background())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := sess.Interpret(context.Background(), "Print 7", Snapshot{})
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	// Three consecutive failures trip the breaker; later requests never
	// reach the server. No call is retried.
	assert.EqualValues(t, 3, calls)
}

func TestRemoteOpenWithoutKey(t *testing.T) {
	_, err := NewRemote("", "", "").Open(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, "[1]", stripFence("```json\n[1]\n```"))
	assert.Equal(t, "[1]", stripFence("```\n[1]```"))
	assert.Equal(t, "[1]", stripFence("  [1] "))
}

func TestBuildPrompt(t *testing.T) {
	p, err := buildPrompt("Call it with 1 and 2", addSnapshot())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p, "Sentence: Call it with 1 and 2\n"))
	assert.Contains(t, p, `"name":"add","kind":"function","type":"Integer"`)
	assert.Contains(t, p, `"last_function":"add"`)
}
