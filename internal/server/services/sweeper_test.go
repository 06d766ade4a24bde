package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type sweepLog struct {
	mu   sync.Mutex
	rows map[string]int64
	runs int
}

func (l *sweepLog) RecordSweep(table string, removed int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rows == nil {
		l.rows = map[string]int64{}
	}
	l.rows[table] += removed
	if table == "refresh_tokens" {
		l.runs++
	}
}

func (l *sweepLog) Runs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runs
}

func seedSweepData(t *testing.T, s *memory.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Users(nil).Create(ctx, &models.User{ID: "u1", Email: "a@x.com"}))

	refresh := s.RefreshTokens(nil)
	require.NoError(t, refresh.Create(ctx, &models.RefreshToken{ID: "1", UserID: "u1", TokenID: "live", ExpiresAt: t0.Add(time.Hour)}))
	require.NoError(t, refresh.Create(ctx, &models.RefreshToken{ID: "2", UserID: "u1", TokenID: "dead", ExpiresAt: t0.Add(-time.Hour)}))

	live := models.NewSingleUseToken("r1", "u1", "h1", t0, t0.Add(time.Hour))
	expired := models.NewSingleUseToken("r2", "u1", "h2", t0.Add(-2*time.Hour), t0.Add(-time.Hour))
	used := models.NewSingleUseToken("r3", "u1", "h3", t0, t0.Add(time.Hour))
	require.NoError(t, used.Consume(t0))
	for _, tok := range []models.SingleUseToken{live, expired, used} {
		tok := tok
		require.NoError(t, s.PasswordResets(nil).Create(ctx, &tok))
	}

	v := models.NewSingleUseToken("v1", "u1", "hv", t0.Add(-48*time.Hour), t0.Add(-24*time.Hour))
	require.NoError(t, s.EmailVerifications(nil).Create(ctx, &v))
}

func TestSweeper_SweepOnce(t *testing.T) {
	store := memory.New()
	seedSweepData(t, store)
	rec := &sweepLog{}

	sw := NewSweeper(store, store, time.Hour, logging.NewNopLogger(), rec)
	sw.now = func() time.Time { return t0 }

	res, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{RefreshTokens: 1, PasswordResets: 2, EmailVerifications: 1}, res)
	assert.Equal(t, memory.Counts{Users: 1, RefreshTokens: 1, PasswordResets: 1}, store.Counts())
	assert.EqualValues(t, 2, rec.rows["password_reset_tokens"])

	res, err = sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := memory.New()
	seedSweepData(t, store)
	rec := &sweepLog{}

	sw := NewSweeper(store, store, 5*time.Millisecond, logging.NewNopLogger(), rec)
	sw.now = func() time.Time { return t0 }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return rec.Runs() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.Equal(t, 1, store.Counts().RefreshTokens)
}
