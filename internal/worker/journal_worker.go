package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"turfhub/internal/events"
	"turfhub/internal/logging"
	"turfhub/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrQueueFull is returned by Handle when the entry had to be dropped.
var ErrQueueFull = errors.New("journal queue is full")

const deadLetterKey = "journal:deadletter"

// JournalWriter is the persistence side of the worker.
type JournalWriter interface {
	Append(ctx context.Context, entry *models.ActivityEntry) error
}

// JournalWorker drains domain events into the activity journal.
type JournalWorker struct {
	journal     JournalWriter
	redis       *redis.Client
	retryPolicy RetryPolicy
	queue       chan *models.ActivityEntry
	logger      *zerolog.Logger
	sleep       func(ctx context.Context, d time.Duration) bool
}

// NewJournalWorker builds a worker with sane defaults. redisClient is optional
// and only used for the dead-letter list.
func NewJournalWorker(journal JournalWriter, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *JournalWorker {
	return &JournalWorker{
		journal:     journal,
		redis:       redisClient,
		retryPolicy: retry.withDefaults(),
		queue:       make(chan *models.ActivityEntry, models.JournalQueueSize),
		logger:      logging.Component(logger, "journal_worker"),
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Handle is an events.EventHandler; it never blocks the publisher.
func (w *JournalWorker) Handle(event *events.Event) error {
	entry := &models.ActivityEntry{
		EventType: event.Type,
		EntityID:  events.EntityID(event),
		Payload:   json.RawMessage(event.Payload),
		CreatedAt: event.CreatedAt,
	}

	select {
	case w.queue <- entry:
		return nil
	default:
		w.logger.Warn().Str("event_type", event.Type).Msg("journal queue full, entry dropped")
		return ErrQueueFull
	}
}

// Start consumes the queue until ctx is done, then flushes what is left.
func (w *JournalWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("journal worker started")
	defer w.logger.Info().Msg("journal worker stopped")

	for {
		select {
		case <-ctx.Done():
			w.flush()
			return
		case entry := <-w.queue:
			w.process(ctx, entry)
		}
	}
}

func (w *JournalWorker) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case entry := <-w.queue:
			if err := w.journal.Append(ctx, entry); err != nil {
				w.logger.Error().Err(err).Str("event_type", entry.EventType).Msg("flush append failed")
				w.pushDeadLetter(ctx, entry)
			}
		default:
			return
		}
	}
}

func (w *JournalWorker) process(ctx context.Context, entry *models.ActivityEntry) {
	var err error
	for attempt := 1; attempt <= w.retryPolicy.MaxRetries; attempt++ {
		if err = w.journal.Append(ctx, entry); err == nil {
			return
		}
		if attempt == w.retryPolicy.MaxRetries {
			break
		}

		delay := w.retryPolicy.NextDelay(attempt)
		w.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Str("event_type", entry.EventType).Msg("journal append failed")
		if !w.sleep(ctx, delay) {
			break
		}
	}

	w.logger.Error().Err(err).Str("event_type", entry.EventType).Str("entity_id", entry.EntityID).Msg("journal entry dropped")
	w.pushDeadLetter(ctx, entry)
}

func (w *JournalWorker) pushDeadLetter(ctx context.Context, entry *models.ActivityEntry) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		w.logger.Error().Err(err).Msg("encode deadletter")
		return
	}
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), time.Second)
		defer cancel()
	}
	if err := w.redis.LPush(ctx, deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Msg("deadletter push")
	}
}
