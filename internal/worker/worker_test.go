package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"turfhub/internal/events"
	"turfhub/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJournal struct {
	mu       sync.Mutex
	failures int
	calls    int
	entries  []*models.ActivityEntry
}

func (f *fakeJournal) Append(_ context.Context, entry *models.ActivityEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("database is locked")
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeJournal) snapshot() (int, []*models.ActivityEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, append([]*models.ActivityEntry(nil), f.entries...)
}

func noSleep(ctx context.Context, _ time.Duration) bool {
	return ctx.Err() == nil
}

func bookingEvent(t *testing.T, id string) *events.Event {
	t.Helper()
	raw, err := json.Marshal(events.BookingEventPayload{BookingID: id})
	require.NoError(t, err)
	return &events.Event{Type: events.EventBookingCreated, Payload: raw, CreatedAt: time.Now()}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	var policy RetryPolicy
	if d := policy.NextDelay(1); d != DefaultRetryPolicy.InitialDelay {
		t.Fatalf("expected default initial delay, got %s", d)
	}
	if d := policy.NextDelay(2000); d != DefaultRetryPolicy.MaxDelay {
		t.Fatalf("expected delay capped at max, got %s", d)
	}
}

func TestJournalWorker_ProcessSuccess(t *testing.T) {
	journal := &fakeJournal{}
	w := NewJournalWorker(journal, nil, RetryPolicy{}, nil)

	require.NoError(t, w.Handle(bookingEvent(t, "b1")))
	w.process(context.Background(), <-w.queue)

	calls, entries := journal.snapshot()
	assert.Equal(t, 1, calls)
	require.Len(t, entries, 1)
	assert.Equal(t, events.EventBookingCreated, entries[0].EventType)
	assert.Equal(t, "b1", entries[0].EntityID)
}

func TestJournalWorker_RetriesThenSucceeds(t *testing.T) {
	journal := &fakeJournal{failures: 2}
	w := NewJournalWorker(journal, nil, RetryPolicy{MaxRetries: 5}, nil)

	var delays []time.Duration
	w.sleep = func(_ context.Context, d time.Duration) bool {
		delays = append(delays, d)
		return true
	}

	require.NoError(t, w.Handle(bookingEvent(t, "b1")))
	w.process(context.Background(), <-w.queue)

	calls, entries := journal.snapshot()
	assert.Equal(t, 3, calls)
	assert.Len(t, entries, 1)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, delays)
}

func TestJournalWorker_DeadLetter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	journal := &fakeJournal{failures: 10}
	w := NewJournalWorker(journal, client, RetryPolicy{MaxRetries: 3}, nil)
	w.sleep = noSleep

	require.NoError(t, w.Handle(bookingEvent(t, "b9")))
	w.process(context.Background(), <-w.queue)

	calls, entries := journal.snapshot()
	assert.Equal(t, 3, calls)
	assert.Empty(t, entries)

	items, err := client.LRange(context.Background(), deadLetterKey, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, items, 1)

	var dead models.ActivityEntry
	require.NoError(t, json.Unmarshal([]byte(items[0]), &dead))
	assert.Equal(t, "b9", dead.EntityID)
}

func TestJournalWorker_QueueFull(t *testing.T) {
	w := NewJournalWorker(&fakeJournal{}, nil, RetryPolicy{}, nil)
	w.queue = make(chan *models.ActivityEntry, 1)

	require.NoError(t, w.Handle(bookingEvent(t, "b1")))
	assert.ErrorIs(t, w.Handle(bookingEvent(t, "b2")), ErrQueueFull)
}

func TestJournalWorker_StartAndFlush(t *testing.T) {
	journal := &fakeJournal{}
	w := NewJournalWorker(journal, nil, RetryPolicy{}, nil)
	w.sleep = noSleep

	bus := events.NewEventBus()
	bus.SubscribeAll(w.Handle)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.PublishJSON(events.EventOrderCreated, events.OrderEventPayload{OrderID: "o"}))
	}

	assert.Eventually(t, func() bool {
		_, entries := journal.snapshot()
		return len(entries) == 5
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
