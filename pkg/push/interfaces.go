package push

import "context"

// TokenStore manages each recipient's registered device tokens.
// It is the only shared mutable resource in the service.
type TokenStore interface {
	// Resolve returns the recipient's current token set via an indexed point
	// lookup. It returns ErrRecipientNotFound when the user directory has no
	// record for the recipient, and an empty set (nil error) for a known
	// recipient with no active devices. Lookup-layer unavailability surfaces
	// as ErrStoreUnavailable, never as a not-found.
	Resolve(ctx context.Context, recipient Recipient) (TokenSet, error)

	// Register upserts a device token for the recipient, creating the
	// directory record on first registration.
	Register(ctx context.Context, recipient Recipient, token DeviceToken) error

	// Remove deletes exactly the given token values from the recipient's
	// set. Values not present are silently ignored, so concurrent prunes of
	// the same dead token are idempotent. Removals are applied per member,
	// never as a whole-value overwrite.
	Remove(ctx context.Context, recipient Recipient, tokens []string) error
}

// Dispatcher sends one payload to a batch of device tokens through a push
// gateway and reports a per-token result.
type Dispatcher interface {
	// Dispatch is defined over a set: callers must deduplicate tokens first,
	// and one token produces exactly one TokenResult. An empty token slice is
	// a no-op returning an empty result with no network call. The error is
	// non-nil only when the entire batch could not be attempted
	// (ErrDispatchUnavailable); per-token failures live in the results.
	Dispatch(ctx context.Context, payload Payload, tokens []string) ([]TokenResult, error)
}
