package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tinywideclouds/go-push-delivery/pkg/push"
)

const (
	defaultResolveTimeout  = 5 * time.Second
	defaultDispatchTimeout = 15 * time.Second
)

// Service orchestrates one delivery: resolve the recipient's tokens, build
// the payload, dispatch a single multicast batch, classify the per-token
// results and prune permanently dead tokens from the registry.
//
// Send calls are independent units of work; any number may run concurrently,
// including for the same recipient. The TokenStore is the only shared state.
type Service struct {
	store   push.TokenStore
	gateway push.Dispatcher
	logger  *slog.Logger

	resolveTimeout  time.Duration
	dispatchTimeout time.Duration
}

// Option tunes a Service.
type Option func(*Service)

// WithResolveTimeout bounds the directory lookup so a slow store cannot stall
// the calling event pipeline.
func WithResolveTimeout(d time.Duration) Option {
	return func(s *Service) { s.resolveTimeout = d }
}

// WithDispatchTimeout bounds the gateway batch call.
func WithDispatchTimeout(d time.Duration) Option {
	return func(s *Service) { s.dispatchTimeout = d }
}

// NewService wires the orchestrator. Store and gateway handles are injected
// and shared by reference; they are created once at startup, never per call.
func NewService(store push.TokenStore, gateway push.Dispatcher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:           store,
		gateway:         gateway,
		logger:          logger.With("component", "DeliveryService"),
		resolveTimeout:  defaultResolveTimeout,
		dispatchTimeout: defaultDispatchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers one notification to every device registered for the
// recipient. It makes exactly one gateway batch call and at most one registry
// mutation (the prune) per invocation.
//
// Validation precedes resolution: an invalid payload never reaches the store
// or the gateway. A recipient with zero devices is a successful no-op. Prune
// failures are logged and do not downgrade the delivery outcome; a dead token
// that survives a failed prune simply fails again on the next Send.
func (s *Service) Send(ctx context.Context, recipientID, title, body, link, icon string) (push.DeliveryOutcome, error) {
	payload, err := BuildPayload(title, body, link, icon)
	if err != nil {
		return push.DeliveryOutcome{}, err
	}

	recipient, err := push.ParseRecipient(recipientID)
	if err != nil {
		return push.DeliveryOutcome{}, err
	}

	sendLogger := s.logger.With(
		"delivery_id", uuid.NewString(),
		"recipient_id", recipient.String(),
	)

	tokens, err := s.resolve(ctx, recipient)
	if err != nil {
		return push.DeliveryOutcome{}, err
	}

	values := tokens.Values()
	if len(values) == 0 {
		sendLogger.Info("No devices registered; skipping dispatch.")
		return push.DeliveryOutcome{}, nil
	}

	results, err := s.dispatch(ctx, payload, values)
	if err != nil {
		// Partial results from a failed or timed-out batch are discarded
		// rather than acted upon: pruning from an incomplete response set
		// could remove a live token.
		return push.DeliveryOutcome{}, err
	}

	classified := Classify(results)
	outcome := push.DeliveryOutcome{
		Sent:   classified.Successes,
		Failed: len(classified.Permanent) + len(classified.Transient),
	}

	if len(classified.Permanent) > 0 {
		sendLogger.Info("Pruning dead device tokens", "count", len(classified.Permanent))
		if err := s.prune(ctx, recipient, classified.Permanent); err != nil {
			// Best effort: the delivery already happened for the tokens that
			// succeeded. The next Send retries the prune.
			sendLogger.Warn("Failed to prune dead tokens", "err", err)
		} else {
			outcome.Pruned = classified.Permanent
		}
	}

	sendLogger.Info("Delivery complete",
		"sent", outcome.Sent,
		"failed", outcome.Failed,
		"pruned", len(outcome.Pruned),
	)
	return outcome, nil
}

func (s *Service) resolve(ctx context.Context, recipient push.Recipient) (push.TokenSet, error) {
	ctx, cancel := context.WithTimeout(ctx, s.resolveTimeout)
	defer cancel()

	tokens, err := s.store.Resolve(ctx, recipient)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", recipient, err)
	}
	// The store already collapses duplicates, but registration flows have
	// historically produced duplicate rows; dedup again at the boundary so a
	// duplicate can never cause a double notification.
	return push.NewTokenSet(tokens...), nil
}

func (s *Service) dispatch(ctx context.Context, payload push.Payload, tokens []string) ([]push.TokenResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()

	results, err := s.gateway.Dispatch(ctx, payload, tokens)
	if err != nil {
		return nil, fmt.Errorf("dispatch batch of %d: %w", len(tokens), err)
	}
	return results, nil
}

func (s *Service) prune(ctx context.Context, recipient push.Recipient, tokens []string) error {
	return s.store.Remove(ctx, recipient, tokens)
}
