// Package host defines the narrow capability interface the core consumes
// from code hosts and CI systems. The core depends only on these
// interfaces; anything that blocks (reading a patch, running a gate,
// merging) happens here and is handed to the core as materialized, hashed
// input.
package host

import (
	"context"
	"fmt"

	"mainlane/pkg/domain"
)

// ManifestFetcher resolves a patch ref into the list of touched paths.
type ManifestFetcher interface {
	FetchPatchManifest(ctx context.Context, patchRef string) ([]string, error)
}

// GateRunner executes gates against a patch and reports per-gate outcomes.
// The core never executes gates itself.
type GateRunner interface {
	RunGates(ctx context.Context, env, patchRef string, gateIDs []string) ([]domain.GateResult, error)
}

// MergeResolver lands an advanced submission on the code host and returns
// the resulting merge ref. Invoked only after the gate engine has decided
// to advance.
type MergeResolver interface {
	ResolveMerge(ctx context.Context, patchRef string) (string, error)
}

// Host bundles all three capabilities.
type Host interface {
	ManifestFetcher
	GateRunner
	MergeResolver
}

// Static is an in-memory host for tests and local dry runs.
type Static struct {
	Manifests map[string][]string
	Results   map[string][]domain.GateResult
	MergeRefs map[string]string
	Env       string
}

func (s *Static) FetchPatchManifest(_ context.Context, patchRef string) ([]string, error) {
	paths, ok := s.Manifests[patchRef]
	if !ok {
		return nil, fmt.Errorf("unknown patch ref %q", patchRef)
	}
	return paths, nil
}

func (s *Static) RunGates(_ context.Context, _ string, patchRef string, gateIDs []string) ([]domain.GateResult, error) {
	results, ok := s.Results[patchRef]
	if !ok {
		return nil, fmt.Errorf("no gate results staged for patch ref %q", patchRef)
	}
	byID := make(map[string]domain.GateResult, len(results))
	for _, r := range results {
		byID[r.GateID] = r
	}
	out := make([]domain.GateResult, 0, len(gateIDs))
	for _, id := range gateIDs {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Static) ResolveMerge(_ context.Context, patchRef string) (string, error) {
	ref, ok := s.MergeRefs[patchRef]
	if !ok {
		return "", fmt.Errorf("no merge ref staged for patch ref %q", patchRef)
	}
	return ref, nil
}
