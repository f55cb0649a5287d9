// Package webhook absorbs job-lifecycle events from the field-service
// system. The HTTP path does no store work: verify, parse, enqueue,
// respond. Workers drain the queue.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Signature headers. Either a valid HMAC signature or the shared internal
// secret is sufficient.
const (
	HeaderSignature    = "X-Service-Signature"
	HeaderInternalAuth = "X-Internal-Auth"

	signaturePrefix = "sha256="
)

// VerifySignature checks an HMAC-SHA256 hex signature over the raw body.
// Comparison is constant time.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	hexSig := strings.TrimPrefix(header, signaturePrefix)
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// VerifyInternalAuth checks the shared-secret header from the trusted
// forwarding service.
func VerifyInternalAuth(secret, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(header)) == 1
}

// Sign produces the signature header value for a body. Used by tests and
// the overflow replay path.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
