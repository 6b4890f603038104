package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mainlane/pkg/db"
	"mainlane/pkg/domain"
	"mainlane/pkg/gate"
	"mainlane/pkg/host"
	"mainlane/pkg/httpx"
	"mainlane/pkg/webhooks"
	"mainlane/services/lane/internal/config"
	"mainlane/services/lane/internal/store"
)

// literalResolver treats the patch ref itself as the merge ref. Used when
// no repository is configured and callers pass final refs directly.
type literalResolver struct{}

func (literalResolver) ResolveMerge(_ context.Context, patchRef string) (string, error) {
	return patchRef, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	pool := db.MustConnect(cfg.DatabaseURL)
	st := store.New(pool)
	if err := st.Migrate(context.Background()); err != nil {
		logger.Error("migrate", "err", err)
		os.Exit(1)
	}

	eng := gate.NewEngine(cfg.RootCommitInterval)
	projects, err := st.ListProjects(context.Background())
	if err != nil {
		logger.Error("list projects", "err", err)
		os.Exit(1)
	}
	for _, id := range projects {
		events, err := st.LoadEvents(context.Background(), id)
		if err != nil {
			logger.Error("load events", "project_id", id, "err", err)
			os.Exit(1)
		}
		if err := eng.RestoreProject(id, events, st); err != nil {
			logger.Error("restore project", "project_id", id, "err", err)
			os.Exit(1)
		}
		logger.Info("project restored", "project_id", id, "events", len(events))
	}

	var resolver host.MergeResolver = literalResolver{}
	var manifests host.ManifestFetcher
	if cfg.RepoPath != "" {
		gitHost, err := host.OpenGit(cfg.RepoPath)
		if err != nil {
			logger.Error("open repository", "path", cfg.RepoPath, "err", err)
			os.Exit(1)
		}
		resolver = gitHost
		manifests = gitHost
	}
	var runner host.GateRunner
	if cfg.RunnerURL != "" {
		runner = host.NewRunnerClient(cfg.RunnerURL, cfg.RunnerToken)
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Route("/lane", func(api chi.Router) {

		api.Post("/projects", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				ProjectID string `json:"project_id"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			if req.ProjectID == "" {
				httpx.WriteError(w, 400, "BAD_REQUEST", "project_id is required", nil)
				return
			}
			if err := st.CreateProject(r.Context(), req.ProjectID); err != nil {
				httpx.WriteError(w, 409, "ALREADY_EXISTS", err.Error(), nil)
				return
			}
			if err := eng.CreateProject(req.ProjectID, st); err != nil {
				httpx.WriteError(w, 409, "ALREADY_EXISTS", err.Error(), nil)
				return
			}
			httpx.WriteOK(w, 201, map[string]any{
				"project": map[string]any{"project_id": req.ProjectID},
			})
		})

		api.Get("/projects", func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteOK(w, 200, map[string]any{"projects": eng.Projects()})
		})

		api.Post("/projects/{project_id}/canon", func(w http.ResponseWriter, r *http.Request) {
			projectID := chi.URLParam(r, "project_id")
			var canon domain.Canon
			if err := httpx.ReadJSON(r, &canon); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			hash, err := eng.PublishCanon(r.Context(), projectID, canon)
			if err != nil {
				httpx.WriteError(w, 422, "PUBLISH_FAILED", err.Error(), nil)
				return
			}
			httpx.WriteOK(w, 201, map[string]any{"canon_hash": hash})
		})

		api.Post("/projects/{project_id}/episodes", func(w http.ResponseWriter, r *http.Request) {
			projectID := chi.URLParam(r, "project_id")
			var ep domain.Episode
			if err := httpx.ReadJSON(r, &ep); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			hash, err := eng.PublishEpisode(r.Context(), projectID, ep)
			if err != nil {
				httpx.WriteError(w, 422, "PUBLISH_FAILED", err.Error(), nil)
				return
			}
			httpx.WriteOK(w, 201, map[string]any{
				"episode_id":    ep.EpisodeID,
				"contract_hash": hash,
			})
		})

		api.Get("/projects/{project_id}/episodes", func(w http.ResponseWriter, r *http.Request) {
			projectID := chi.URLParam(r, "project_id")
			filter := gate.BrowseFilter{
				Status:     domain.ContractStatus(r.URL.Query().Get("status")),
				PathPrefix: r.URL.Query().Get("path"),
				Unclaimed:  r.URL.Query().Get("unclaimed") == "true",
			}
			episodes, err := eng.Browse(projectID, filter)
			if err != nil {
				httpx.WriteError(w, 404, "NOT_FOUND", err.Error(), nil)
				return
			}
			httpx.WriteOK(w, 200, map[string]any{"episodes": episodes})
		})

		api.Get("/projects/{project_id}/episodes/{episode_id}/contract", func(w http.ResponseWriter, r *http.Request) {
			projectID := chi.URLParam(r, "project_id")
			episodeID := chi.URLParam(r, "episode_id")
			ep, hash, err := eng.GetContract(projectID, episodeID)
			if err != nil {
				httpx.WriteError(w, 404, "NOT_FOUND", err.Error(), nil)
				return
			}
			httpx.WriteOK(w, 200, map[string]any{
				"contract":      ep,
				"contract_hash": hash,
			})
		})

		api.Post("/projects/{project_id}/episodes/{episode_id}/claims", func(w http.ResponseWriter, r *http.Request) {
			projectID := chi.URLParam(r, "project_id")
			episodeID := chi.URLParam(r, "episode_id")
			var req struct {
				ClaimantID string `json:"claimant_id"`
				TTL        uint64 `json:"ttl"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			if req.TTL == 0 {
				req.TTL = 256
			}
			claim, err := eng.Claim(r.Context(), projectID, episodeID, req.ClaimantID, req.TTL)
			if err != nil {
				httpx.WriteError(w, 409, string(domain.ReasonClaimConflict), err.Error(), nil)
				return
			}
			httpx.WriteOK(w, 201, map[string]any{"claim": claim})
		})

		api.Post("/projects/{project_id}/episodes/{episode_id}/claims/{claim_id}/release", func(w http.ResponseWriter, r *http.Request) {
			projectID := chi.URLParam(r, "project_id")
			episodeID := chi.URLParam(r, "episode_id")
			claimID := chi.URLParam(r, "claim_id")
			var req struct {
				Reason string `json:"reason"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil && err != io.EOF {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			if err := eng.Release(r.Context(), projectID, episodeID, claimID, req.Reason); err != nil {
				httpx.WriteError(w, 422, "RELEASE_FAILED", err.Error(), nil)
				return
			}
			httpx.WriteOK(w, 200, map[string]any{"released": true})
		})

		api.Post("/projects/{project_id}/proofs", func(w http.ResponseWriter, r *http.Request) {
			projectID := chi.URLParam(r, "project_id")
			var req struct {
				Submission domain.Submission  `json:"submission"`
				PatchRef   string             `json:"patch_ref"`
				Proof      domain.ProofBundle `json:"proof"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			out, err := eng.RecordProof(r.Context(), projectID, req.Submission, req.PatchRef, req.Proof)
			if err != nil {
				httpx.WriteError(w, 422, "RECORD_FAILED", err.Error(), nil)
				return
			}
			status := 200
			if !out.Accepted {
				status = 422
			}
			httpx.WriteOK(w, status, map[string]any{"outcome": out})
		})

		// Materialize the proof server-side: diff the patch against the
		// repository, run the required gates on the runner, then record.
		api.Post("/projects/{project_id}/proofs/run", func(w http.ResponseWriter, r *http.Request) {
			projectID := chi.URLParam(r, "project_id")
			if runner == nil || manifests == nil {
				httpx.WriteError(w, 501, "NOT_CONFIGURED", "runner and repository must be configured", nil)
				return
			}
			var req struct {
				SubmissionID string `json:"submission_id"`
				EpisodeID    string `json:"episode_id"`
				PatchRef     string `json:"patch_ref"`
				PatchHash    string `json:"patch_hash"`
				BaseRef      string `json:"base_ref"`
				Env          string `json:"env"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			required, err := eng.RequiredGates(projectID, req.EpisodeID)
			if err != nil {
				httpx.WriteError(w, 404, "NOT_FOUND", err.Error(), nil)
				return
			}
			paths, err := manifests.FetchPatchManifest(r.Context(), req.PatchRef)
			if err != nil {
				httpx.WriteError(w, 422, "MANIFEST_FAILED", err.Error(), nil)
				return
			}
			results, err := runner.RunGates(r.Context(), req.Env, req.PatchRef, required)
			if err != nil {
				httpx.WriteError(w, 502, "RUNNER_FAILED", err.Error(), nil)
				return
			}
			sub := domain.Submission{
				SubmissionID: req.SubmissionID,
				EpisodeID:    req.EpisodeID,
				PatchHash:    req.PatchHash,
				BaseRef:      req.BaseRef,
				TouchedPaths: paths,
			}
			bundle := domain.ProofBundle{
				EpisodeID:      req.EpisodeID,
				SubmissionID:   req.SubmissionID,
				Gates:          results,
				EnvFingerprint: req.Env,
			}
			out, err := eng.RecordProof(r.Context(), projectID, sub, req.PatchRef, bundle)
			if err != nil {
				httpx.WriteError(w, 422, "RECORD_FAILED", err.Error(), nil)
				return
			}
			status := 200
			if !out.Accepted {
				status = 422
			}
			httpx.WriteOK(w, status, map[string]any{
				"outcome":       out,
				"touched_paths": paths,
			})
		})

		api.Post("/projects/{project_id}/submissions/{submission_id}/compat", func(w http.ResponseWriter, r *http.Request) {
			projectID := chi.URLParam(r, "project_id")
			submissionID := chi.URLParam(r, "submission_id")
			cert, err := eng.CheckCompat(r.Context(), projectID, submissionID)
			if err != nil {
				httpx.WriteError(w, 422, "COMPAT_FAILED", err.Error(), nil)
				return
			}
			httpx.WriteOK(w, 200, map[string]any{"certificate": cert})
		})

		api.Post("/projects/{project_id}/merges", func(w http.ResponseWriter, r *http.Request) {
			projectID := chi.URLParam(r, "project_id")
			var req struct {
				EpisodeID    string `json:"episode_id"`
				SubmissionID string `json:"submission_id"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			qid, err := eng.EnqueueMerge(r.Context(), projectID, req.EpisodeID, req.SubmissionID, resolver)
			if err != nil {
				httpx.WriteError(w, 422, "ENQUEUE_FAILED", err.Error(), nil)
				return
			}
			ticket, err := eng.Status(projectID, qid)
			if err != nil {
				httpx.WriteError(w, 500, "INTERNAL", err.Error(), nil)
				return
			}
			httpx.WriteOK(w, 200, map[string]any{"ticket": ticket})
		})

		api.Get("/projects/{project_id}/merges/{queue_id}", func(w http.ResponseWriter, r *http.Request) {
			projectID := chi.URLParam(r, "project_id")
			queueID := chi.URLParam(r, "queue_id")
			ticket, err := eng.Status(projectID, queueID)
			if err != nil {
				httpx.WriteError(w, 404, "NOT_FOUND", err.Error(), nil)
				return
			}
			httpx.WriteOK(w, 200, map[string]any{"ticket": ticket})
		})

		api.Get("/projects/{project_id}/head", func(w http.ResponseWriter, r *http.Request) {
			projectID := chi.URLParam(r, "project_id")
			head, err := eng.Head(projectID)
			if err != nil {
				httpx.WriteError(w, 404, "NOT_FOUND", err.Error(), nil)
				return
			}
			httpx.WriteOK(w, 200, map[string]any{"head_root": head})
		})

		api.Get("/projects/{project_id}/log", func(w http.ResponseWriter, r *http.Request) {
			projectID := chi.URLParam(r, "project_id")
			from, _ := strconv.ParseUint(r.URL.Query().Get("from"), 10, 64)
			to, _ := strconv.ParseUint(r.URL.Query().Get("to"), 10, 64)
			events, err := eng.Events(projectID, from, to)
			if err != nil {
				httpx.WriteError(w, 404, "NOT_FOUND", err.Error(), nil)
				return
			}
			httpx.WriteOK(w, 200, map[string]any{"events": events})
		})

		api.Get("/projects/{project_id}/log/verify", func(w http.ResponseWriter, r *http.Request) {
			projectID := chi.URLParam(r, "project_id")
			if err := eng.VerifyProject(projectID); err != nil {
				httpx.WriteOK(w, 200, map[string]any{
					"valid": false,
					"error": err.Error(),
				})
				return
			}
			httpx.WriteOK(w, 200, map[string]any{"valid": true})
		})

		if cfg.WebhookSecret != "" {
			verifier := webhooks.NewRunnerHMACVerifier("gate-runner")
			api.Post("/webhooks/runner", func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
				if err != nil {
					httpx.WriteError(w, 400, "BAD_BODY", err.Error(), nil)
					return
				}
				res, err := verifier.Verify(r.Header, body, time.Now(), cfg.WebhookSecret)
				if err != nil || !res.Valid {
					httpx.WriteError(w, 401, "INVALID_SIGNATURE", "webhook signature rejected", res.Details)
					return
				}
				var req struct {
					ProjectID  string             `json:"project_id"`
					Submission domain.Submission  `json:"submission"`
					PatchRef   string             `json:"patch_ref"`
					Proof      domain.ProofBundle `json:"proof"`
				}
				if err := json.Unmarshal(body, &req); err != nil {
					httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
					return
				}
				out, err := eng.RecordProof(r.Context(), req.ProjectID, req.Submission, req.PatchRef, req.Proof)
				if err != nil {
					httpx.WriteError(w, 422, "RECORD_FAILED", err.Error(), nil)
					return
				}
				logger.Info("runner callback recorded",
					"project_id", req.ProjectID,
					"submission_id", req.Submission.SubmissionID,
					"event_id", res.ProviderEventID,
					"accepted", out.Accepted)
				httpx.WriteOK(w, 200, map[string]any{"outcome": out})
			})
		}
	})

	logger.Info("lane service listening", "port", cfg.ServicePort)
	if err := http.ListenAndServe(":"+cfg.ServicePort, r); err != nil {
		logger.Error("serve", "err", err)
		os.Exit(1)
	}
}
