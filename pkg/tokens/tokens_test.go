package tokens_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/quantnest/executor/pkg/market"
	"github.com/quantnest/executor/pkg/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func newStore(t *testing.T) (*tokens.Store, *tokens.MemoryBackend, *clock) {
	t.Helper()

	backend := tokens.NewMemoryBackend()
	c := &clock{now: time.Date(2026, 10, 16, 10, 0, 0, 0, market.IST)}

	return tokens.NewStore(discardLogger(), backend).WithClock(c.Now), backend, c
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStore_StatusWithoutRecordOpensRequest(t *testing.T) {
	t.Parallel()

	store, backend, _ := newStore(t)
	ctx := t.Context()

	status, err := store.Status(ctx, "user-1", "wf-1")
	require.NoError(t, err)

	assert.False(t, status.Valid)
	assert.True(t, status.NeedsToken)
	assert.Equal(t, tokens.MessageTokenRequired, status.Message)
	assert.NotEmpty(t, status.RequestID)

	record, err := backend.Load(ctx, "user-1", "wf-1")
	require.NoError(t, err)
	assert.Equal(t, tokens.StatePending, record.State)
	assert.Equal(t, status.RequestID, record.RequestID)

	again, err := store.Status(ctx, "user-1", "wf-1")
	require.NoError(t, err)
	assert.Equal(t, tokens.MessageTokenPending, again.Message)
	assert.Equal(t, status.RequestID, again.RequestID)
}

func TestStore_SavedTokenIsValidUntilMidnight(t *testing.T) {
	t.Parallel()

	store, _, c := newStore(t)
	ctx := t.Context()

	require.NoError(t, store.Save(ctx, "user-1", "wf-1", "secret"))

	status, err := store.Status(ctx, "user-1", "wf-1")
	require.NoError(t, err)
	assert.True(t, status.Valid)
	assert.Equal(t, "Token valid for 14 more hours.", status.Message)
	require.NotNil(t, status.ExpiresAt)
	assert.True(t, status.ExpiresAt.Equal(time.Date(2026, 10, 17, 0, 0, 0, 0, market.IST)))

	token, err := store.AccessToken(ctx, "user-1", "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "secret", token)

	c.now = c.now.Add(15 * time.Hour)

	token, err = store.AccessToken(ctx, "user-1", "wf-1")
	require.NoError(t, err)
	assert.Empty(t, token)

	status, err = store.Status(ctx, "user-1", "wf-1")
	require.NoError(t, err)
	assert.False(t, status.Valid)
	assert.Equal(t, tokens.MessageTokenExpired, status.Message)
	assert.NotEmpty(t, status.RequestID)
}

func TestStore_AccessTokenMissing(t *testing.T) {
	t.Parallel()

	store, _, _ := newStore(t)

	token, err := store.AccessToken(t.Context(), "nobody", "wf")
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestStore_PendingRequestHasNoToken(t *testing.T) {
	t.Parallel()

	store, _, _ := newStore(t)
	ctx := t.Context()

	_, err := store.CreateRequest(ctx, "user-1", "wf-1")
	require.NoError(t, err)

	token, err := store.AccessToken(ctx, "user-1", "wf-1")
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	store, backend, _ := newStore(t)
	ctx := t.Context()

	require.NoError(t, store.Save(ctx, "user-1", "wf-1", "secret"))
	require.NoError(t, store.Delete(ctx, "user-1", "wf-1"))
	require.NoError(t, store.Delete(ctx, "user-1", "wf-1"))

	_, err := backend.Load(ctx, "user-1", "wf-1")
	require.ErrorIs(t, err, tokens.ErrTokenNotFound)
}

type failingBackend struct {
	tokens.MemoryBackend
}

func (*failingBackend) Load(context.Context, string, string) (*tokens.Record, error) {
	return nil, assert.AnError
}

func TestStore_BackendError(t *testing.T) {
	t.Parallel()

	store := tokens.NewStore(discardLogger(), &failingBackend{})

	status, err := store.Status(t.Context(), "user-1", "wf-1")
	require.ErrorIs(t, err, assert.AnError)
	assert.False(t, status.Valid)
	assert.Equal(t, tokens.MessageStatusError, status.Message)
}

func TestNextMidnight(t *testing.T) {
	t.Parallel()

	late := time.Date(2026, 10, 16, 23, 59, 0, 0, market.IST)
	assert.True(t, tokens.NextMidnight(late).Equal(time.Date(2026, 10, 17, 0, 0, 0, 0, market.IST)))

	utc := time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)
	assert.True(t, tokens.NextMidnight(utc).Equal(time.Date(2026, 10, 18, 0, 0, 0, 0, market.IST)))
}
