// Package push contains the domain models and public interfaces for the
// push-delivery service.
package push

import (
	"errors"
	"strings"
	"time"
)

// Sentinel errors for the delivery taxonomy. Layers wrap these with
// fmt.Errorf("...: %w", ...) and callers match with errors.Is.
var (
	// ErrInvalidRecipient indicates an empty or unusable recipient identifier.
	ErrInvalidRecipient = errors.New("invalid recipient id")
	// ErrRecipientNotFound indicates the user directory has no record at all
	// for the identifier. A known recipient with zero devices is NOT an error.
	ErrRecipientNotFound = errors.New("recipient not found")
	// ErrInvalidPayload indicates the notification content failed validation.
	ErrInvalidPayload = errors.New("invalid notification payload")
	// ErrDispatchUnavailable indicates the gateway batch call could not be
	// attempted at all. Individual token failures never escalate to this.
	ErrDispatchUnavailable = errors.New("push gateway unavailable")
	// ErrStoreUnavailable indicates the token registry itself failed,
	// as opposed to a record simply missing.
	ErrStoreUnavailable = errors.New("token store unavailable")
)

// Recipient identifies a user targeted for notification delivery.
// The value is opaque; it is issued and owned by the identity system.
type Recipient string

func (r Recipient) String() string { return string(r) }

// ParseRecipient normalises a raw identifier. Upstream systems pass
// inconsistently formatted ids, so surrounding whitespace is trimmed
// before any lookup.
func ParseRecipient(raw string) (Recipient, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidRecipient
	}
	return Recipient(trimmed), nil
}

// DeviceToken is an opaque identifier issued by a platform push service
// to one installed client instance.
type DeviceToken struct {
	Value        string    `json:"value"`
	Platform     string    `json:"platform,omitempty"`
	RegisteredAt time.Time `json:"registered_at,omitzero"`
}

// TokenSet is a recipient's registered device tokens, unique by raw value.
// An empty set is a valid state: the user currently has no active devices.
type TokenSet []DeviceToken

// NewTokenSet collapses duplicate token values, keeping the first
// registration and the original order. Re-registration after an app
// reinstall must not cause duplicate notifications.
func NewTokenSet(tokens ...DeviceToken) TokenSet {
	seen := make(map[string]struct{}, len(tokens))
	set := make(TokenSet, 0, len(tokens))
	for _, t := range tokens {
		if _, dup := seen[t.Value]; dup {
			continue
		}
		seen[t.Value] = struct{}{}
		set = append(set, t)
	}
	return set
}

// Values returns the raw token values in set order.
func (s TokenSet) Values() []string {
	vals := make([]string, len(s))
	for i, t := range s {
		vals[i] = t.Value
	}
	return vals
}

// Payload is the immutable content of one notification broadcast.
// Construct it with delivery.BuildPayload so validation is applied.
type Payload struct {
	Title string
	Body  string
	// Link is an optional deep-link URL opened on click-through.
	Link string
	// Icon is an optional icon reference for platforms that display one.
	Icon string
}

// DispatchStatus tags the gateway's verdict for a single token.
type DispatchStatus int

const (
	StatusSuccess DispatchStatus = iota
	// StatusTransientFailure: the gateway was unreachable, rate-limited or
	// timed out for this token. Never grounds for pruning.
	StatusTransientFailure
	// StatusPermanentFailure: the token can never again receive
	// notifications and must be removed from the registry.
	StatusPermanentFailure
)

func (s DispatchStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusTransientFailure:
		return "transient"
	case StatusPermanentFailure:
		return "permanent"
	default:
		return "unknown"
	}
}

// TokenResult is the per-token outcome of one multicast dispatch.
// Produced by the gateway engine, consumed by the classifier; never stored.
type TokenResult struct {
	Token  string
	Status DispatchStatus
	Reason string
}

// DeliveryOutcome aggregates one Send call. It is a return value,
// not a persisted entity.
type DeliveryOutcome struct {
	Sent   int
	Failed int
	// Pruned lists the token values removed from the registry because the
	// gateway reported them permanently dead.
	Pruned []string
}
