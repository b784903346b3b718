// Package streaming resolves raw track audio references into URLs that are
// safe to hand to the audio sink right now. References into the protected
// storage backend are exchanged for freshly signed, time-limited URLs;
// everything else passes through.
package streaming

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// StorageScheme marks references addressing the storage backend by object
// key directly, e.g. "storage://tracks/1234.mp3".
const StorageScheme = "storage://"

// storagePathMarker marks https references routed through the storage
// backend, e.g. "https://cdn.soundcrate.io/storage/tracks/1234.mp3".
const storagePathMarker = "/storage/"

// signatureParams are query parameters that identify an already-signed URL.
// Re-signing those would only shorten their remaining validity.
var signatureParams = []string{
	"X-Amz-Signature",
	"X-Amz-Expires",
	"Signature",
	"Expires",
	"token",
}

// Exchanger swaps a storage object key for a signed playable URL.
type Exchanger interface {
	SignURL(ctx context.Context, objectKey string) (string, error)
}

// Resolver turns raw audio references into playable URLs.
type Resolver struct {
	exchanger Exchanger
}

// NewResolver creates a resolver using exchanger for key exchanges.
func NewResolver(exchanger Exchanger) *Resolver {
	return &Resolver{exchanger: exchanger}
}

// Resolve returns a URL playable right now for the given reference. A
// resolver failure never prevents a playback attempt: when extraction or
// exchange fails the original reference is returned and downstream playback
// surfaces its own error if that fallback is unusable. Only an empty
// reference yields an empty result.
func (r *Resolver) Resolve(ctx context.Context, ref string) string {
	if ref == "" {
		return ""
	}

	if isSigned(ref) {
		return ref
	}

	key, ok := extractObjectKey(ref)
	if !ok {
		// External reference (preview CDN, third-party host): use as is.
		return ref
	}

	signed, err := r.exchanger.SignURL(ctx, key)
	if err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Secure URL exchange failed, falling back to raw reference")
		return ref
	}

	log.Debug().Str("key", key).Msg("Resolved secure URL")
	return signed
}

// isSigned reports whether ref already carries a signature or expiry marker.
func isSigned(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	q := u.Query()
	for _, param := range signatureParams {
		if q.Has(param) {
			return true
		}
	}
	return false
}

// extractObjectKey pulls the storage object key out of a reference that
// addresses the internal storage backend. It reports false for external
// references.
func extractObjectKey(ref string) (string, bool) {
	if strings.HasPrefix(ref, StorageScheme) {
		key := strings.TrimPrefix(ref, StorageScheme)
		return key, key != ""
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if idx := strings.Index(u.Path, storagePathMarker); idx != -1 {
		key := u.Path[idx+len(storagePathMarker):]
		return key, key != ""
	}
	return "", false
}
