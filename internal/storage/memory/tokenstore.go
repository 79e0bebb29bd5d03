// Package memory provides an in-process token registry. It backs tests that
// exercise registry semantics without a Firestore emulator.
package memory

import (
	"context"
	"sync"

	"github.com/tinywideclouds/go-push-delivery/pkg/push"
)

// Store keeps the registry in a mutex-guarded map. Removals are applied as
// per-member deletes, mirroring the durable store's semantics: two concurrent
// prunes of different tokens for the same recipient both stick.
type Store struct {
	mu    sync.RWMutex
	users map[push.Recipient]map[string]push.DeviceToken
}

func NewStore() *Store {
	return &Store{users: make(map[push.Recipient]map[string]push.DeviceToken)}
}

func (s *Store) Resolve(_ context.Context, recipient push.Recipient) (push.TokenSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices, ok := s.users[recipient]
	if !ok {
		return nil, push.ErrRecipientNotFound
	}

	tokens := make([]push.DeviceToken, 0, len(devices))
	for _, t := range devices {
		tokens = append(tokens, t)
	}
	return push.NewTokenSet(tokens...), nil
}

func (s *Store) Register(_ context.Context, recipient push.Recipient, token push.DeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, ok := s.users[recipient]
	if !ok {
		devices = make(map[string]push.DeviceToken)
		s.users[recipient] = devices
	}
	devices[token.Value] = token
	return nil
}

// Remove deletes the given token values. Absent values are ignored, and the
// recipient's entry survives even when it becomes empty: "no active devices"
// is a valid state distinct from "unknown recipient".
func (s *Store) Remove(_ context.Context, recipient push.Recipient, tokens []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, ok := s.users[recipient]
	if !ok {
		return nil
	}
	for _, t := range tokens {
		delete(devices, t)
	}
	return nil
}
