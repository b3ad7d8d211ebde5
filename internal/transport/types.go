// Package transport defines the uniform send contract implemented by every
// delivery mechanism (hosted API, browser automation, local runner, no-op).
package transport

import (
	"context"
	"errors"
)

// ErrRateLimited is the distinguished failure raised when the messaging
// provider reports its periodic sending quota exhausted. The orchestrator
// matches it with errors.Is; provider-specific code/string sniffing stays
// inside the hosted adapter.
var ErrRateLimited = errors.New("provider rate limit exceeded")

// Message is one outbound WhatsApp message.
type Message struct {
	// To is the destination address (e.g. "+51987654321").
	To string
	// Body is the already-composed message text.
	Body string
	// MediaURLs are optional public image links to attach. Adapters that
	// cannot attach media ignore them; the links are already embedded in
	// Body by the orchestrator.
	MediaURLs []string
}

// Adapter sends messages through one concrete mechanism.
//
// Send returns nil on confirmed delivery/handover and an error otherwise;
// ErrRateLimited (possibly wrapped) is the only distinguished error kind.
// Close releases any stateful session the adapter owns. It must be safe to
// call on every exit path, including after a failed Send.
type Adapter interface {
	Name() string
	Send(ctx context.Context, msg Message) error
	Close(ctx context.Context) error
}
