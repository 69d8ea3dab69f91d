package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pokewar-server/internal/config"
	"github.com/pokewar-server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKeys = []string{"users", "servers", "matches"}

func newTestWorker(primary, archive store.Backend, interval time.Duration) *SnapshotWorker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSnapshotWorker(primary, archive, testKeys, &config.SnapshotConfig{Interval: interval, Enabled: true}, logger)
}

func put(t *testing.T, b store.Backend, key, value string) {
	t.Helper()
	_, err := b.Put(context.Background(), key, []byte(value), store.AnyVersion)
	require.NoError(t, err)
}

func get(t *testing.T, b store.Backend, key string) string {
	t.Helper()
	entry, err := b.Get(context.Background(), key)
	require.NoError(t, err)
	return string(entry.Data)
}

func TestRunOnceCopiesPresentKeys(t *testing.T) {
	primary, archive := store.NewMemoryBackend(), store.NewMemoryBackend()
	put(t, primary, "users", `[{"id":"u1"}]`)
	put(t, primary, "servers", `[]`)
	put(t, archive, "matches", `[{"id":"old"}]`)

	newTestWorker(primary, archive, time.Hour).RunOnce(context.Background())

	assert.Equal(t, `[{"id":"u1"}]`, get(t, archive, "users"))
	assert.Equal(t, `[]`, get(t, archive, "servers"))
	assert.Equal(t, `[{"id":"old"}]`, get(t, archive, "matches"), "keys missing from primary are kept")
}

func TestRestoreAllOnlyFillsMissingKeys(t *testing.T) {
	primary, archive := store.NewMemoryBackend(), store.NewMemoryBackend()
	put(t, primary, "users", `["live"]`)
	put(t, archive, "users", `["stale"]`)
	put(t, archive, "servers", `["saved"]`)

	restored, err := newTestWorker(primary, archive, time.Hour).RestoreAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	assert.Equal(t, `["live"]`, get(t, primary, "users"))
	assert.Equal(t, `["saved"]`, get(t, primary, "servers"))
	assert.Equal(t, "", get(t, primary, "matches"))
}

type failingBackend struct{ *store.MemoryBackend }

func (failingBackend) Get(context.Context, string) (store.Entry, error) {
	return store.Entry{}, errors.New("connection refused")
}

func TestRestoreAllReportsErrors(t *testing.T) {
	primary := store.NewMemoryBackend()
	_, err := newTestWorker(primary, failingBackend{store.NewMemoryBackend()}, time.Hour).RestoreAll(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestStartStopTakesFinalSnapshot(t *testing.T) {
	primary, archive := store.NewMemoryBackend(), store.NewMemoryBackend()
	w := newTestWorker(primary, archive, time.Hour)

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())

	put(t, primary, "matches", `[{"id":"m1"}]`)

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	assert.Equal(t, `[{"id":"m1"}]`, get(t, archive, "matches"))
}

func TestTickerSnapshots(t *testing.T) {
	primary, archive := store.NewMemoryBackend(), store.NewMemoryBackend()
	put(t, primary, "users", `["u1"]`)

	w := newTestWorker(primary, archive, 10*time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Eventually(t, func() bool {
		entry, err := archive.Get(context.Background(), "users")
		return err == nil && string(entry.Data) == `["u1"]`
	}, time.Second, 5*time.Millisecond)
}
