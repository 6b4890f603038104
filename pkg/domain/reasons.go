package domain

// ReasonCode is the failure taxonomy shared by every verifier and checker.
// Verifiers return outcome values carrying all applicable reasons; nothing
// in the core infers success from partial evidence.
type ReasonCode string

const (
	ReasonSchemaError      ReasonCode = "SCHEMA_ERROR"
	ReasonHashMismatch     ReasonCode = "HASH_MISMATCH"
	ReasonStaleBase        ReasonCode = "STALE_BASE"
	ReasonScopeViolation   ReasonCode = "SCOPE_VIOLATION"
	ReasonGateFailure      ReasonCode = "GATE_FAILURE"
	ReasonConflictDetected ReasonCode = "CONFLICT_DETECTED"
	ReasonClaimConflict    ReasonCode = "CLAIM_CONFLICT"
	ReasonUnknownCanon     ReasonCode = "UNKNOWN_CANON"
	ReasonUnknownContract  ReasonCode = "UNKNOWN_CONTRACT"
)

// Retryable reports whether resubmission against a fresh head can succeed
// without changing the contract or the patch. HashMismatch is never
// retryable: it flags tampering or corruption, not policy.
func (c ReasonCode) Retryable() bool {
	return c == ReasonStaleBase
}

// Known reports whether c belongs to the taxonomy. Transport layers use it
// to tell taxonomy rejections apart from plumbing errors.
func (c ReasonCode) Known() bool {
	switch c {
	case ReasonSchemaError, ReasonHashMismatch, ReasonStaleBase,
		ReasonScopeViolation, ReasonGateFailure, ReasonConflictDetected,
		ReasonClaimConflict, ReasonUnknownCanon, ReasonUnknownContract:
		return true
	}
	return false
}

// Reason is one structured rejection entry.
type Reason struct {
	Code    ReasonCode     `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func NewReason(code ReasonCode, message string) Reason {
	return Reason{Code: code, Message: message}
}

// HasCode reports whether any reason in the list carries the given code.
func HasCode(reasons []Reason, code ReasonCode) bool {
	for _, r := range reasons {
		if r.Code == code {
			return true
		}
	}
	return false
}
