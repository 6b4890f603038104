package host

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mainlane/pkg/domain"
)

func TestStaticManifest(t *testing.T) {
	h := &Static{Manifests: map[string][]string{
		"abc123": {"src/parser/tokenizer.go"},
	}}

	paths, err := h.FetchPatchManifest(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/parser/tokenizer.go"}, paths)

	_, err = h.FetchPatchManifest(context.Background(), "nope")
	assert.Error(t, err)
}

func TestStaticRunGatesFiltersToRequested(t *testing.T) {
	h := &Static{Results: map[string][]domain.GateResult{
		"abc123": {
			{GateID: "lint", Pass: true},
			{GateID: "test", Pass: true},
			{GateID: "bench", Pass: false},
		},
	}}

	got, err := h.RunGates(context.Background(), "go1.24", "abc123", []string{"lint", "test"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "lint", got[0].GateID)
	assert.Equal(t, "test", got[1].GateID)
}

func TestStaticResolveMerge(t *testing.T) {
	h := &Static{MergeRefs: map[string]string{"abc123": "deadbeef"}}

	ref, err := h.ResolveMerge(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", ref)

	_, err = h.ResolveMerge(context.Background(), "nope")
	assert.Error(t, err)
}

func TestRunnerClientRunGates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/runner/gates/run", r.URL.Path)
		require.Equal(t, "Bearer tok_1", r.Header.Get("Authorization"))

		var req runGatesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "abc123", req.PatchRef)

		results := make([]domain.GateResult, 0, len(req.GateIDs))
		for _, id := range req.GateIDs {
			results = append(results, domain.GateResult{GateID: id, Pass: true, LogHash: "sha256:aa"})
		}
		_ = json.NewEncoder(w).Encode(runGatesResponse{RequestID: "req_1", Results: results})
	}))
	defer srv.Close()

	c := NewRunnerClient(srv.URL, "tok_1")
	got, err := c.RunGates(context.Background(), "go1.24", "abc123", []string{"lint", "test"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Pass)
}

func TestRunnerClientSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "runner offline"})
	}))
	defer srv.Close()

	c := NewRunnerClient(srv.URL, "")
	_, err := c.RunGates(context.Background(), "go1.24", "abc123", []string{"lint"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
