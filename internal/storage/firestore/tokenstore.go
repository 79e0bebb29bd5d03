// Package firestore implements the token registry on Google Cloud Firestore.
package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-push-delivery/pkg/push"
)

// Store keeps one directory document per recipient under "users", with
// registered devices in a subcollection keyed by token hash. Resolution is an
// indexed point lookup; there is never a scan over the user directory.
type Store struct {
	client *firestore.Client
}

func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

// deviceRecord is the internal DB representation of one registration.
type deviceRecord struct {
	Token        string    `firestore:"token"`
	Platform     string    `firestore:"platform,omitempty"`
	RegisteredAt time.Time `firestore:"registered_at"`
}

// Resolve returns the recipient's current token set.
//
// A missing directory document is push.ErrRecipientNotFound; an existing
// document with an empty devices subcollection is a valid empty set. Any
// other lookup failure is an infrastructure error, never a not-found.
func (s *Store) Resolve(ctx context.Context, recipient push.Recipient) (push.TokenSet, error) {
	if _, err := s.userRef(recipient).Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, push.ErrRecipientNotFound
		}
		return nil, fmt.Errorf("%w: directory lookup: %v", push.ErrStoreUnavailable, err)
	}

	iter := s.devicesCollection(recipient).Documents(ctx)
	defer iter.Stop()

	var tokens []push.DeviceToken
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: device iteration: %v", push.ErrStoreUnavailable, err)
		}

		var record deviceRecord
		if err := doc.DataTo(&record); err != nil {
			// Corrupt rows are skipped rather than failing the delivery.
			continue
		}
		if record.Token == "" {
			continue
		}
		tokens = append(tokens, push.DeviceToken{
			Value:        record.Token,
			Platform:     record.Platform,
			RegisteredAt: record.RegisteredAt,
		})
	}

	// Token-hash doc IDs already guarantee uniqueness, but the set
	// constructor keeps that a property of the data model, not the schema.
	return push.NewTokenSet(tokens...), nil
}

// Register upserts a device token. The doc ID is a hash of the token, so
// re-registration after a reinstall overwrites rather than duplicates. The
// directory document is created on first registration.
func (s *Store) Register(ctx context.Context, recipient push.Recipient, token push.DeviceToken) error {
	if _, err := s.userRef(recipient).Set(ctx, map[string]any{
		"updated_at": time.Now(),
	}, firestore.MergeAll); err != nil {
		return fmt.Errorf("%w: directory upsert: %v", push.ErrStoreUnavailable, err)
	}

	registeredAt := token.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = time.Now()
	}
	record := deviceRecord{
		Token:        token.Value,
		Platform:     token.Platform,
		RegisteredAt: registeredAt,
	}
	if _, err := s.deviceRef(recipient, hashToken(token.Value)).Set(ctx, record); err != nil {
		return fmt.Errorf("%w: device upsert: %v", push.ErrStoreUnavailable, err)
	}
	return nil
}

// Remove deletes the given token values. Each removal targets its own device
// document, so concurrent prunes of different tokens for the same recipient
// never clobber each other, and deleting an already-absent document succeeds,
// which makes the prune idempotent.
func (s *Store) Remove(ctx context.Context, recipient push.Recipient, tokens []string) error {
	var errs []error
	for _, t := range tokens {
		if _, err := s.deviceRef(recipient, hashToken(t)).Delete(ctx); err != nil {
			errs = append(errs, fmt.Errorf("delete token %s: %w", hashToken(t)[:8], err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", push.ErrStoreUnavailable, errors.Join(errs...))
	}
	return nil
}

// userRef: users/{recipient}
func (s *Store) userRef(recipient push.Recipient) *firestore.DocumentRef {
	return s.client.Collection("users").Doc(recipient.String())
}

// deviceRef: users/{recipient}/devices/{tokenHash}
func (s *Store) deviceRef(recipient push.Recipient, docID string) *firestore.DocumentRef {
	return s.devicesCollection(recipient).Doc(docID)
}

func (s *Store) devicesCollection(recipient push.Recipient) *firestore.CollectionRef {
	return s.userRef(recipient).Collection("devices")
}

// Hash of the token as doc ID prevents duplicates and hot-spotting.
func hashToken(t string) string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}
