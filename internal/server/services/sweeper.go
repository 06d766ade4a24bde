package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
)

// SweepResult counts the rows removed by one sweep.
type SweepResult struct {
	RefreshTokens      int64
	PasswordResets     int64
	EmailVerifications int64
}

// SweepRecorder observes sweep results.
type SweepRecorder interface {
	RecordSweep(table string, removed int64)
}

// Sweeper periodically purges expired refresh tokens and spent or expired
// single-use tokens.
type Sweeper struct {
	tx       dbx.Transactor
	repos    repomanager.RepositoryManager
	interval time.Duration
	log      logging.Logger
	recorder SweepRecorder
	now      func() time.Time
}

// NewSweeper returns a sweeper running every interval. recorder may be nil.
func NewSweeper(tx dbx.Transactor, repos repomanager.RepositoryManager, interval time.Duration, log logging.Logger, recorder SweepRecorder) *Sweeper {
	return &Sweeper{
		tx:       tx,
		repos:    repos,
		interval: interval,
		log:      log.With("module", "sweeper"),
		recorder: recorder,
		now:      time.Now,
	}
}

// SweepOnce runs one pass. Each table is cleaned independently; errors
// are joined.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	var (
		res  SweepResult
		errs []error
		now  = s.now()
		conn = s.tx.Conn()
	)

	n, err := s.repos.RefreshTokens(conn).DeleteExpired(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("refresh_tokens: %w", err))
	}
	res.RefreshTokens = n

	n, err = s.repos.PasswordResets(conn).DeleteStale(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("password_reset_tokens: %w", err))
	}
	res.PasswordResets = n

	n, err = s.repos.EmailVerifications(conn).DeleteStale(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("email_verify_tokens: %w", err))
	}
	res.EmailVerifications = n

	if s.recorder != nil {
		s.recorder.RecordSweep("refresh_tokens", res.RefreshTokens)
		s.recorder.RecordSweep("password_reset_tokens", res.PasswordResets)
		s.recorder.RecordSweep("email_verify_tokens", res.EmailVerifications)
	}
	return res, errors.Join(errs...)
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info(ctx, "sweeper started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Info(context.Background(), "sweeper stopped")
			return
		case <-ticker.C:
			res, err := s.SweepOnce(ctx)
			if err != nil {
				s.log.Error(ctx, "sweep failed", "error", err)
				continue
			}
			s.log.Debug(ctx, "sweep done",
				"refresh_tokens", res.RefreshTokens,
				"password_reset_tokens", res.PasswordResets,
				"email_verify_tokens", res.EmailVerifications)
		}
	}
}
