package audit

import "context"

// Store persists or forwards audit events. Implementations: in-memory ring
// (tests, dev) and Kafka (production fan-out).
type Store interface {
	Append(ctx context.Context, event Event) error
}
