// Package eventkey derives the idempotency key correlating a sent
// notification with later button presses on it.
package eventkey

import "fmt"

// Kinds of events that produce notifications.
const (
	KindCreated = "created"
	KindUpdated = "updated"
)

// New builds the deterministic key for (kind, username, sendAt). Retrying
// the same underlying event yields the same key, so buttons attached to a
// redelivered notification correlate with the original one.
func New(kind, username string, sendAt int64) string {
	return fmt.Sprintf("%s_%s_%d", kind, username, sendAt)
}
