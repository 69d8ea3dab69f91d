package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pokewar-server/internal/config"
	"github.com/pokewar-server/internal/store"
)

// SnapshotWorker periodically copies every game collection from the
// primary backend (Redis) into a durable archive backend (PostgreSQL), and
// can restore a primary that lost its data.
type SnapshotWorker struct {
	primary store.Backend
	archive store.Backend
	keys    []string
	config  *config.SnapshotConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSnapshotWorker creates a new snapshot worker for the given keys
func NewSnapshotWorker(
	primary store.Backend,
	archive store.Backend,
	keys []string,
	cfg *config.SnapshotConfig,
	logger *slog.Logger,
) *SnapshotWorker {
	return &SnapshotWorker{
		primary: primary,
		archive: archive,
		keys:    keys,
		config:  cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the background snapshot loop
func (w *SnapshotWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("snapshot worker started", "interval", w.config.Interval, "keys", len(w.keys))

	go w.run(ctx)
	return nil
}

// Stop takes a final snapshot and stops the loop
func (w *SnapshotWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("snapshot worker stopped")
	return nil
}

func (w *SnapshotWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			finalCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			w.RunOnce(finalCtx)
			cancel()
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce copies every key from the primary to the archive. Keys absent
// from the primary are left untouched in the archive.
func (w *SnapshotWorker) RunOnce(ctx context.Context) {
	startTime := time.Now()
	copied, failed := 0, 0

	for _, key := range w.keys {
		ok, err := w.snapshotKey(ctx, key)
		if err != nil {
			w.logger.Error("failed to snapshot key", "key", key, "error", err)
			failed++
			continue
		}
		if ok {
			copied++
		}
	}

	w.logger.Info("snapshot cycle completed",
		"duration", time.Since(startTime),
		"copied", copied,
		"errors", failed,
	)
}

func (w *SnapshotWorker) snapshotKey(ctx context.Context, key string) (bool, error) {
	entry, err := w.primary.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("reading primary: %w", err)
	}
	if entry.Data == nil {
		return false, nil
	}
	if _, err := w.archive.Put(ctx, key, entry.Data, store.AnyVersion); err != nil {
		return false, fmt.Errorf("writing archive: %w", err)
	}
	return true, nil
}

// RestoreAll copies keys that are missing from the primary back from the
// archive. Keys already present in the primary always win. It returns the
// number of restored keys.
func (w *SnapshotWorker) RestoreAll(ctx context.Context) (int, error) {
	w.logger.Info("restoring missing keys from archive")

	restored := 0
	var errs []error
	for _, key := range w.keys {
		ok, err := w.restoreKey(ctx, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("restoring %s: %w", key, err))
			continue
		}
		if ok {
			restored++
			w.logger.Debug("restored key from archive", "key", key)
		}
	}

	w.logger.Info("restore completed", "restored", restored, "errors", len(errs))
	return restored, errors.Join(errs...)
}

func (w *SnapshotWorker) restoreKey(ctx context.Context, key string) (bool, error) {
	current, err := w.primary.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if current.Data != nil {
		return false, nil
	}

	saved, err := w.archive.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if saved.Data == nil {
		return false, nil
	}

	// Version 0 only writes if the key is still missing.
	_, err = w.primary.Put(ctx, key, saved.Data, 0)
	if errors.Is(err, store.ErrVersionConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsRunning returns whether the worker is currently running
func (w *SnapshotWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
