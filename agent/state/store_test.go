package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"

	"github.com/sorrisolabs/agendabot/agent/contract"
)

func newStore(t *testing.T, opts ...StoreOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, opts...), mr
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	ctx := context.Background()

	conv := New("+5511999990000", now, time.Hour)
	conv.Set("date", "2026-09-10")
	conv.Transition(StateDateCollected)
	conv.AppendHistory(contract.IntentSchedule, contract.ActionAskTime)

	if err := store.Save(ctx, conv); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(ctx, "+5511999990000")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Current != StateDateCollected {
		t.Fatalf("state = %s", got.Current)
	}
	if v, _ := got.Get("date"); v != "2026-09-10" {
		t.Fatalf("date = %q", v)
	}
	if len(got.History) != 1 || got.History[0].Action != string(contract.ActionAskTime) {
		t.Fatalf("history = %+v", got.History)
	}
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	if _, err := store.Load(context.Background(), "+5511888880000"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("want ErrStateNotFound, got %v", err)
	}
}

func TestRecordExpiresInRedis(t *testing.T) {
	t.Parallel()

	store, mr := newStore(t, WithTTL(time.Hour))
	ctx := context.Background()

	if err := store.Save(ctx, New("+5511999990000", now, time.Hour)); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(2 * time.Hour)

	if _, err := store.Load(ctx, "+5511999990000"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expired record must read as absent, got %v", err)
	}
}

func TestSaveRejectsInvalidRecord(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, nil); !errors.Is(err, ErrNilState) {
		t.Fatalf("nil record: %v", err)
	}

	bad := New("+5511999990000", now, time.Hour)
	bad.Current = State("limbo")
	if err := store.Save(ctx, bad); !errors.Is(err, contract.ErrValidation) {
		t.Fatalf("undeclared state must fail validation, got %v", err)
	}
}

func TestLoadRejectsCorruptRecord(t *testing.T) {
	t.Parallel()

	store, mr := newStore(t)
	mr.Set("agendabot:conversation:+5511999990000", "{not json")

	if _, err := store.Load(context.Background(), "+5511999990000"); err == nil {
		t.Fatalf("corrupt record must not load")
	}
}

func TestStoreDown(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewRedisStore(client)
	mr.Close()

	if _, err := store.Load(context.Background(), "+5511999990000"); !errors.Is(err, contract.ErrStoreUnavailable) {
		t.Fatalf("want ErrStoreUnavailable, got %v", err)
	}
}
