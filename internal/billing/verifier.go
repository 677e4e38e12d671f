package billing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/quill/internal/domain"
	"github.com/stripe/stripe-go/v82/webhook"
)

// DefaultSignatureTolerance is the allowed skew between the signature
// timestamp and the local clock, in either direction.
const DefaultSignatureTolerance = 5 * time.Minute

// Verifier authenticates webhook payloads signed with a shared secret.
// It never interprets the payload.
type Verifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a verifier for the given signing secret (whsec_...).
// A non-positive tolerance falls back to DefaultSignatureTolerance.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	return &Verifier{
		secret:    secret,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Verify checks header against an HMAC-SHA256 of payload and the embedded
// timestamp against the tolerance window. It returns the payload unchanged
// on success, or one of domain.ErrSignatureMissing, domain.ErrSignatureInvalid
// and domain.ErrSignatureExpired.
func (v *Verifier) Verify(payload []byte, header string) ([]byte, error) {
	if strings.TrimSpace(header) == "" {
		return nil, domain.ErrSignatureMissing
	}

	// HMAC comparison is constant-time inside the stripe webhook package.
	if err := webhook.ValidatePayloadIgnoringTolerance(payload, header, v.secret); err != nil {
		if errors.Is(err, webhook.ErrNotSigned) {
			return nil, domain.ErrSignatureMissing
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}

	signedAt, err := signatureTimestamp(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}

	skew := v.now().Sub(signedAt)
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return nil, domain.ErrSignatureExpired
	}

	return payload, nil
}

// signatureTimestamp extracts t= from a "t=...,v1=..." signature header.
func signatureTimestamp(header string) (time.Time, error) {
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || key != "t" {
			continue
		}
		secs, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid signature timestamp: %w", err)
		}
		return time.Unix(secs, 0), nil
	}
	return time.Time{}, errors.New("signature timestamp missing")
}

// HeaderSummary describes a signature header for logs without echoing digests.
func HeaderSummary(header string) string {
	var schemes []string
	hasTimestamp := false
	for _, part := range strings.Split(header, ",") {
		key, _, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		if key == "t" {
			hasTimestamp = true
			continue
		}
		schemes = append(schemes, key)
	}
	return fmt.Sprintf("len=%d timestamp=%t schemes=%s", len(header), hasTimestamp, strings.Join(schemes, "|"))
}
