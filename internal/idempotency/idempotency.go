// Package idempotency deduplicates externally retried inputs: Telegram
// update redeliveries and repeated webhook posts.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultTTL bounds how long a processed key blocks redelivery.
const DefaultTTL = 24 * time.Hour

// GenerateKey builds a deterministic key using all provided parts.
func GenerateKey(parts ...interface{}) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%v:", part)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Store records processed keys.
type Store interface {
	// MarkProcessed records the key and reports whether it was seen for
	// the first time. A false return means a duplicate delivery.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
