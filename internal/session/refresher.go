package session

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher periodically sweeps the store so tokens are renewed before they
// expire, even for idle browsers.
type Refresher struct {
	cron     *cron.Cron
	manager  *Manager
	interval time.Duration
	logger   *zap.SugaredLogger
}

func NewRefresher(m *Manager, interval time.Duration, logger *zap.SugaredLogger) (*Refresher, error) {
	if interval <= 0 {
		return nil, errors.Errorf("refresh interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	r := &Refresher{
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		manager:  m,
		interval: interval,
		logger:   logger.Named("refresher"),
	}
	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", interval), r.run); err != nil {
		return nil, errors.Wrap(err, "schedule token refresh")
	}
	return r, nil
}

func (r *Refresher) Start() {
	r.logger.Infow("Token refresher started", "interval", r.interval)
	r.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to
// expire.
func (r *Refresher) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (r *Refresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()
	res, err := r.manager.Sweep(ctx)
	if err != nil {
		r.logger.Errorw("Session sweep failed", "error", err)
		return
	}
	if res.Refreshed+res.Failed+res.Expired > 0 {
		r.logger.Infow("Session sweep",
			"refreshed", res.Refreshed,
			"failed", res.Failed,
			"expired", res.Expired)
	}
}
