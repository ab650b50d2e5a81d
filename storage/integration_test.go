//go:build integration

package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

func TestRedisStore_Integration(t *testing.T) {
	addr := os.Getenv("LOCALFLOW_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}

	exerciseStore(t, NewRedisStore(client, time.Minute))

	t.Run("ttl applied", func(t *testing.T) {
		s := NewRedisStore(client, time.Minute)
		if err := s.Save(context.Background(), sampleSnapshot("ttl_check")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		defer s.Delete(context.Background(), "ttl_check")
		ttl, err := client.TTL(context.Background(), redisKeyPrefix+"ttl_check").Result()
		if err != nil {
			t.Fatal(err)
		}
		if ttl <= 0 || ttl > time.Minute {
			t.Errorf("unexpected TTL %v", ttl)
		}
	})
}

func TestKVStore_Integration(t *testing.T) {
	url := os.Getenv("LOCALFLOW_NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Timeout(2*time.Second))
	if err != nil {
		t.Skipf("nats not available at %s: %v", url, err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}
	ctx := context.Background()
	_ = js.DeleteKeyValue(ctx, BucketSessions)

	s, err := NewKVStore(ctx, js)
	if err != nil {
		t.Fatalf("NewKVStore() error = %v", err)
	}
	defer js.DeleteKeyValue(ctx, BucketSessions)

	exerciseStore(t, s)

	t.Run("sessions lists stored ids", func(t *testing.T) {
		if err := s.Save(ctx, sampleSnapshot("dave")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		ids, err := s.Sessions(ctx)
		if err != nil {
			t.Fatalf("Sessions() error = %v", err)
		}
		if len(ids) != 1 || ids[0] != "dave" {
			t.Errorf("Sessions() = %v, want [dave]", ids)
		}
	})
}
