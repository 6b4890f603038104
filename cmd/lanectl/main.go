// lanectl drives a lane service from the command line. Record inputs are
// YAML files; every command prints a single JSON summary line so output
// can be piped into tooling.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mainlane/pkg/domain"
	"mainlane/pkg/drl"
)

var (
	serverURL string
	projectID string
)

func main() {
	root := &cobra.Command{
		Use:           "lanectl",
		Short:         "Interact with a lane service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8084", "lane service base URL")
	root.PersistentFlags().StringVar(&projectID, "project", "", "project id")

	root.AddCommand(
		projectCmd(),
		canonCmd(),
		episodeCmd(),
		browseCmd(),
		claimCmd(),
		proofCmd(),
		mergeCmd(),
		headCmd(),
		logCmd(),
	)

	if err := root.Execute(); err != nil {
		summary("FAIL", map[string]any{"reason": err.Error()})
		os.Exit(1)
	}
}

func projectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "project create",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "create" {
				return fmt.Errorf("unknown subcommand %q", args[0])
			}
			var resp map[string]any
			if err := call(http.MethodPost, "/lane/projects", map[string]any{"project_id": projectID}, &resp); err != nil {
				return err
			}
			summary("PASS", map[string]any{"project_id": projectID})
			return nil
		},
	}
}

func canonCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "canon publish",
		Short: "Publish a canon version from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "publish" {
				return fmt.Errorf("unknown subcommand %q", args[0])
			}
			var canon domain.Canon
			if err := readYAML(file, &canon); err != nil {
				return err
			}
			var resp struct {
				CanonHash string `json:"canon_hash"`
			}
			if err := call(http.MethodPost, "/lane/projects/"+projectID+"/canon", canon, &resp); err != nil {
				return err
			}
			summary("PASS", map[string]any{"canon_hash": resp.CanonHash})
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to canon YAML")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func episodeCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "episode publish",
		Short: "Publish an episode contract from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "publish" {
				return fmt.Errorf("unknown subcommand %q", args[0])
			}
			var ep domain.Episode
			if err := readYAML(file, &ep); err != nil {
				return err
			}
			var resp struct {
				EpisodeID    string `json:"episode_id"`
				ContractHash string `json:"contract_hash"`
			}
			if err := call(http.MethodPost, "/lane/projects/"+projectID+"/episodes", ep, &resp); err != nil {
				return err
			}
			summary("PASS", map[string]any{"episode_id": resp.EpisodeID, "contract_hash": resp.ContractHash})
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to episode YAML")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func browseCmd() *cobra.Command {
	var status string
	var unclaimed bool
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "List episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/lane/projects/" + projectID + "/episodes?unclaimed=" + fmt.Sprint(unclaimed)
			if status != "" {
				path += "&status=" + status
			}
			var resp struct {
				Episodes []map[string]any `json:"episodes"`
			}
			if err := call(http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			summary("PASS", map[string]any{"episodes": resp.Episodes})
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by contract status")
	cmd.Flags().BoolVar(&unclaimed, "unclaimed", false, "only unclaimed episodes")
	return cmd
}

func claimCmd() *cobra.Command {
	var episodeID, claimantID string
	var ttl uint64
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim an episode",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Claim domain.Claim `json:"claim"`
			}
			err := call(http.MethodPost, "/lane/projects/"+projectID+"/episodes/"+episodeID+"/claims",
				map[string]any{"claimant_id": claimantID, "ttl": ttl}, &resp)
			if err != nil {
				return err
			}
			summary("PASS", map[string]any{
				"claim_id":   resp.Claim.ClaimID,
				"expiry_seq": resp.Claim.ExpirySeq,
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&episodeID, "episode", "", "episode id")
	cmd.Flags().StringVar(&claimantID, "claimant", "", "claimant id")
	cmd.Flags().Uint64Var(&ttl, "ttl", 256, "claim lease in log entries")
	_ = cmd.MarkFlagRequired("episode")
	_ = cmd.MarkFlagRequired("claimant")
	return cmd
}

func proofCmd() *cobra.Command {
	var file, patchRef string
	cmd := &cobra.Command{
		Use:   "proof record",
		Short: "Record a proof bundle from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "record" {
				return fmt.Errorf("unknown subcommand %q", args[0])
			}
			var in struct {
				Submission domain.Submission  `json:"submission"`
				Proof      domain.ProofBundle `json:"proof"`
			}
			if err := readYAML(file, &in); err != nil {
				return err
			}
			var resp struct {
				Outcome struct {
					Accepted  bool            `json:"accepted"`
					ProofHash string          `json:"proof_hash"`
					Reasons   []domain.Reason `json:"reasons"`
				} `json:"outcome"`
			}
			err := call(http.MethodPost, "/lane/projects/"+projectID+"/proofs", map[string]any{
				"submission": in.Submission,
				"patch_ref":  patchRef,
				"proof":      in.Proof,
			}, &resp)
			if err != nil {
				return err
			}
			status := "PASS"
			if !resp.Outcome.Accepted {
				status = "FAIL"
			}
			summary(status, map[string]any{
				"proof_hash": resp.Outcome.ProofHash,
				"reasons":    resp.Outcome.Reasons,
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to submission+proof YAML")
	cmd.Flags().StringVar(&patchRef, "patch-ref", "", "patch ref for merge resolution")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func mergeCmd() *cobra.Command {
	var episodeID, submissionID, queueID string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Enqueue a merge or query a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Ticket struct {
					QueueID  string          `json:"queue_id"`
					Status   string          `json:"status"`
					NextRoot string          `json:"next_root"`
					MergeRef string          `json:"merge_ref"`
					Reasons  []domain.Reason `json:"reasons"`
				} `json:"ticket"`
			}
			switch args[0] {
			case "enqueue":
				err := call(http.MethodPost, "/lane/projects/"+projectID+"/merges", map[string]any{
					"episode_id":    episodeID,
					"submission_id": submissionID,
				}, &resp)
				if err != nil {
					return err
				}
			case "status":
				if err := call(http.MethodGet, "/lane/projects/"+projectID+"/merges/"+queueID, nil, &resp); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown subcommand %q", args[0])
			}
			status := "PASS"
			if resp.Ticket.Status == "Rejected" {
				status = "FAIL"
			}
			summary(status, map[string]any{
				"queue_id":  resp.Ticket.QueueID,
				"status":    resp.Ticket.Status,
				"next_root": resp.Ticket.NextRoot,
				"merge_ref": resp.Ticket.MergeRef,
				"reasons":   resp.Ticket.Reasons,
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&episodeID, "episode", "", "episode id")
	cmd.Flags().StringVar(&submissionID, "submission", "", "submission id")
	cmd.Flags().StringVar(&queueID, "queue", "", "queue id")
	return cmd
}

func headCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "head",
		Short: "Print the project's committed root",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				HeadRoot string `json:"head_root"`
			}
			if err := call(http.MethodGet, "/lane/projects/"+projectID+"/head", nil, &resp); err != nil {
				return err
			}
			summary("PASS", map[string]any{"head_root": resp.HeadRoot})
			return nil
		},
	}
}

func logCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log verify",
		Short: "Fetch the project log and verify its hash chain locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "verify" {
				return fmt.Errorf("unknown subcommand %q", args[0])
			}
			var resp struct {
				Events []drl.Event `json:"events"`
			}
			if err := call(http.MethodGet, "/lane/projects/"+projectID+"/log", nil, &resp); err != nil {
				return err
			}
			// Verified client-side: trusting the service's own verdict would
			// defeat the audit.
			if err := drl.VerifyChain(resp.Events); err != nil {
				summary("FAIL", map[string]any{"events": len(resp.Events), "reason": err.Error()})
				os.Exit(1)
			}
			summary("PASS", map[string]any{"events": len(resp.Events)})
			return nil
		},
	}
}

// readYAML decodes via JSON so YAML files use the same snake_case keys as
// the wire format.
func readYAML(path string, dst any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	jb, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert %s: %w", path, err)
	}
	if err := json.Unmarshal(jb, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func call(method, path string, body, dst any) error {
	if projectID == "" && strings.Contains(path, "/projects/") {
		return fmt.Errorf("--project is required")
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, strings.TrimRight(serverURL, "/")+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 && resp.StatusCode != 422 {
		var errResp struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(raw, &errResp)
		if errResp.Error.Code != "" {
			return fmt.Errorf("%s: %s", errResp.Error.Code, errResp.Error.Message)
		}
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	if dst != nil {
		return json.Unmarshal(raw, dst)
	}
	return nil
}

func summary(status string, fields map[string]any) {
	out := map[string]any{
		"protocol":      "mainlane",
		"status":        status,
		"timestamp_utc": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range fields {
		out[k] = v
	}
	b, _ := json.Marshal(out)
	fmt.Println(string(b))
}
