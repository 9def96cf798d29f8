package repository

import (
	"context"
	"sync/atomic"
	"time"

	"turfhub/internal/domain"

	"github.com/rs/zerolog"
)

const failoverRecheck = time.Minute

// FailoverLocker uses the primary locker until it fails, then the fallback.
// The primary is retried once failoverRecheck has passed.
type FailoverLocker struct {
	primary   domain.Locker
	fallback  domain.Locker
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverLocker(primary, fallback domain.Locker, logger *zerolog.Logger) *FailoverLocker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (l *FailoverLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.isDown.Load() && l.now().Sub(time.Unix(0, l.lastCheck.Load())) > failoverRecheck {
		unlock, err := l.primary.Lock(ctx, key)
		if err == nil {
			l.isDown.Store(false)
			l.logger.Info().Msg("Primary locker recovered")
			return unlock, nil
		}
		if isLockContention(err) {
			return nil, err
		}
		l.lastCheck.Store(l.now().UnixNano())
	}

	if !l.isDown.Load() {
		unlock, err := l.primary.Lock(ctx, key)
		if err == nil || isLockContention(err) {
			return unlock, err
		}
		l.logger.Error().Err(err).Str("key", key).Msg("Primary locker failed, falling back to memory")
		l.isDown.Store(true)
		l.lastCheck.Store(l.now().UnixNano())
	}

	return l.fallback.Lock(ctx, key)
}
