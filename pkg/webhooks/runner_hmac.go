package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	runnerSignatureHeader = "X-Lane-Signature"
	runnerTimestampHeader = "X-Lane-Timestamp"
	runnerEventIDHeader   = "X-Lane-Event-Id"
	runnerEventTypeHeader = "X-Lane-Event-Type"
	runnerHMACScheme      = "lane-runner-hmac-sha256/v1"

	// timestampTolerance bounds replay: a captured callback is only useful
	// for this long.
	timestampTolerance = 5 * time.Minute
)

type runnerHMACVerifier struct {
	provider string
}

// NewRunnerHMACVerifier verifies callbacks signed with HMAC-SHA256 over the
// timestamp and raw body. The timestamp is covered by the signature and
// checked against receivedAt, so a stale or replayed callback fails even
// with a correct secret. provider names the runner deployment for audit
// details.
func NewRunnerHMACVerifier(provider string) Verifier {
	return &runnerHMACVerifier{provider: strings.TrimSpace(provider)}
}

func (v *runnerHMACVerifier) Provider() string {
	return v.provider
}

func (v *runnerHMACVerifier) Verify(headers http.Header, rawBody []byte, receivedAt time.Time, secret string) (VerificationResult, error) {
	if strings.TrimSpace(secret) == "" {
		return VerificationResult{}, fmt.Errorf("webhook verifier secret is empty")
	}

	res := VerificationResult{
		Valid:  false,
		Scheme: runnerHMACScheme,
		Details: map[string]any{
			"signature_header_present": false,
			"timestamp_header_present": false,
			"timestamp_in_tolerance":   false,
			"signature_hex_decodable":  false,
			"provider":                 v.provider,
			"used_header":              runnerSignatureHeader,
		},
		ProviderEventID: strings.TrimSpace(headers.Get(runnerEventIDHeader)),
		EventType:       strings.TrimSpace(headers.Get(runnerEventTypeHeader)),
	}
	if res.EventType == "" {
		res.EventType = "unknown"
	}

	sigHex := strings.TrimSpace(headers.Get(runnerSignatureHeader))
	if sigHex == "" {
		return res, nil
	}
	res.Details["signature_header_present"] = true

	tsRaw := strings.TrimSpace(headers.Get(runnerTimestampHeader))
	if tsRaw == "" {
		return res, nil
	}
	res.Details["timestamp_header_present"] = true

	tsUnix, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return res, nil
	}
	skew := receivedAt.Sub(time.Unix(tsUnix, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > timestampTolerance {
		return res, nil
	}
	res.Details["timestamp_in_tolerance"] = true

	providedSig, err := hex.DecodeString(sigHex)
	if err != nil {
		return res, nil
	}
	res.Details["signature_hex_decodable"] = true

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(tsRaw))
	_, _ = mac.Write([]byte{'\n'})
	_, _ = mac.Write(rawBody)
	res.Valid = hmac.Equal(mac.Sum(nil), providedSig)
	return res, nil
}

// Sign computes the hex signature a runner attaches for the given timestamp
// and body. The timestamp header must carry ts.Unix() verbatim. Exported for
// clients and tests.
func Sign(secret string, ts time.Time, rawBody []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	_, _ = mac.Write([]byte{'\n'})
	_, _ = mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
