package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"mainlane/pkg/domain"
)

// RunnerClient talks to a remote gate-runner service over HTTP. It
// implements GateRunner only; manifests and merges belong to the code host.
type RunnerClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Bearer     string
}

func NewRunnerClient(baseURL, bearer string) *RunnerClient {
	return &RunnerClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
		Bearer:     bearer,
	}
}

type runGatesRequest struct {
	Env      string   `json:"env"`
	PatchRef string   `json:"patch_ref"`
	GateIDs  []string `json:"gate_ids"`
}

type runGatesResponse struct {
	RequestID string              `json:"request_id"`
	Results   []domain.GateResult `json:"results"`
}

func (c *RunnerClient) RunGates(ctx context.Context, env, patchRef string, gateIDs []string) ([]domain.GateResult, error) {
	body, err := json.Marshal(runGatesRequest{Env: env, PatchRef: patchRef, GateIDs: gateIDs})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/runner/gates/run", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	out, err := doJSON[runGatesResponse](c, req)
	if err != nil {
		return nil, err
	}
	return out.Results, nil
}

func doJSON[T any](c *RunnerClient, req *http.Request) (*T, error) {
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return nil, fmt.Errorf("http %d: %v", resp.StatusCode, errBody)
	}
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
