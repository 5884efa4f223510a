package main

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type tokenPurger interface {
	PurgeExpired(now time.Time) error
}

type purgeTicker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

type tickerFactory func(time.Duration) purgeTicker

// startTokenPurgeWorker sweeps expired token records out of the memory store.
// Redis evicts keys on its own, so the worker is a no-op when the store is nil.
func startTokenPurgeWorker(ctx context.Context, logger *slog.Logger, store tokenPurger, interval time.Duration) func() {
	return startTokenPurgeWorkerWithTicker(ctx, logger, store, interval, func(d time.Duration) purgeTicker {
		return timeTicker{ticker: time.NewTicker(d)}
	})
}

func startTokenPurgeWorkerWithTicker(
	ctx context.Context,
	logger *slog.Logger,
	store tokenPurger,
	interval time.Duration,
	newTicker tickerFactory,
) func() {
	if store == nil || interval <= 0 {
		return func() {}
	}
	workerCtx, cancel := context.WithCancel(ctx)
	ticker := newTicker(interval)
	done := make(chan struct{})
	go func() {
		defer func() {
			ticker.Stop()
			close(done)
		}()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C():
				if err := store.PurgeExpired(time.Now()); err != nil && logger != nil {
					logger.Error("failed to purge expired tokens", "error", err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
