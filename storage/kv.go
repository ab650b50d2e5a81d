package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

// BucketSessions is the JetStream KV bucket holding session snapshots.
const BucketSessions = "LOCALFLOW_SESSIONS"

// KVStore keeps snapshots in a NATS JetStream KV bucket. The bucket keeps a
// short revision history, so earlier plans survive a bad install.
type KVStore struct {
	kv jetstream.KeyValue
}

// NewKVStore opens the sessions bucket, creating it if it doesn't exist.
func NewKVStore(ctx context.Context, js jetstream.JetStream) (*KVStore, error) {
	kv, err := getOrCreateBucket(ctx, js, BucketSessions)
	if err != nil {
		return nil, fmt.Errorf("create sessions bucket: %w", err)
	}
	return &KVStore{kv: kv}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("LocalFlow %s storage", strings.ToLower(name)),
		History:     5,
	})
}

// Load implements Store.
func (s *KVStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	if err := ValidateSessionID(id); err != nil {
		return nil, err
	}
	entry, err := s.kv.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return decode(entry.Value())
}

// Save implements Store.
func (s *KVStore) Save(ctx context.Context, snap *Snapshot) error {
	if err := prepare(snap); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if _, err := s.kv.Put(ctx, snap.SessionID, data); err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *KVStore) Delete(ctx context.Context, id string) error {
	if err := ValidateSessionID(id); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, id); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Sessions lists the ids with a stored snapshot.
func (s *KVStore) Sessions(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list session keys: %w", err)
	}
	return keys, nil
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) || strings.Contains(err.Error(), "key not found")
}
