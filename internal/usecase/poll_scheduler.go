package usecase

import (
	"context"
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc"

	"github.com/udenfc/super11/internal/platform/logging"
)

// PollSchedulerConfig sets the cadence of the four timer tiers.
type PollSchedulerConfig struct {
	// CheckInterval is how often the live-window decision is re-evaluated.
	CheckInterval time.Duration
	// FastInterval drives standings refreshes while a match is live.
	FastInterval time.Duration
	// SlowInterval drives standings refreshes outside live windows.
	SlowInterval time.Duration
	// SeasonRefreshInterval drives the daily schedule re-fetch.
	SeasonRefreshInterval time.Duration
	// PoolSize caps the workers that run the refresh callbacks.
	PoolSize int
}

const (
	defaultCheckInterval         = 15 * time.Minute
	defaultFastInterval          = 3 * time.Minute
	defaultSlowInterval          = 2 * time.Hour
	defaultSeasonRefreshInterval = 24 * time.Hour
	defaultPoolSize              = 4
)

func normalizeSchedulerConfig(cfg PollSchedulerConfig) PollSchedulerConfig {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	if cfg.FastInterval <= 0 {
		cfg.FastInterval = defaultFastInterval
	}
	if cfg.SlowInterval <= 0 {
		cfg.SlowInterval = defaultSlowInterval
	}
	if cfg.SeasonRefreshInterval <= 0 {
		cfg.SeasonRefreshInterval = defaultSeasonRefreshInterval
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaultPoolSize
	}
	return cfg
}

// PollScheduler runs the adaptive polling state machine. A periodic
// check flips the fast tier on when a match enters its live window and
// off when the last one leaves it; the slow tier keeps standings warm
// in between and yields entirely while the fast tier runs.
type PollScheduler struct {
	standings *StandingsService
	seasons   *SeasonService
	cfg       PollSchedulerConfig
	logger    *logging.Logger
	pool      *ants.Pool
	now       func() time.Time

	mu       sync.Mutex
	fastStop chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPollScheduler(standings *StandingsService, seasons *SeasonService, cfg PollSchedulerConfig, logger *logging.Logger) (*PollScheduler, error) {
	if logger == nil {
		logger = logging.Default()
	}
	cfg = normalizeSchedulerConfig(cfg)
	pool, err := ants.NewPool(cfg.PoolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, crerr.Wrap(err, "create scheduler worker pool")
	}
	return &PollScheduler{
		standings: standings,
		seasons:   seasons,
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		now:       time.Now,
	}, nil
}

// Start warms the caches and launches the timer loops. It returns once
// the warm-up is done; the loops run until Stop or ctx cancellation.
func (p *PollScheduler) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	var warm conc.WaitGroup
	warm.Go(func() {
		if err := p.seasons.Load(ctx); err != nil {
			p.logger.ErrorContext(ctx, "season warm-up failed", "error", err)
		}
	})
	warm.Go(func() {
		if _, err := p.standings.RefreshLatest(ctx); err != nil {
			p.logger.WarnContext(ctx, "standings warm-up failed", "error", err)
		}
	})
	warm.Wait()

	p.evaluate(ctx)

	p.wg.Add(3)
	go p.checkLoop(ctx)
	go p.slowLoop(ctx)
	go p.seasonLoop(ctx)
	p.logger.InfoContext(ctx, "poll scheduler started",
		"check_interval", p.cfg.CheckInterval,
		"fast_interval", p.cfg.FastInterval,
		"slow_interval", p.cfg.SlowInterval,
	)
}

// Stop tears down every loop and the worker pool. Safe to call once
// after Start; in-flight refreshes are allowed to finish.
func (p *PollScheduler) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.stopFast()
	p.wg.Wait()
	p.pool.Release()
}

func (p *PollScheduler) checkLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.evaluate(ctx)
		}
	}
}

// evaluate flips the fast tier to match the live-window state. Both
// transitions are idempotent, a repeat observation is a no-op.
func (p *PollScheduler) evaluate(ctx context.Context) {
	if p.seasons.IsMatchActiveAt(p.now()) {
		p.startFast(ctx)
	} else {
		p.stopFast()
	}
}

func (p *PollScheduler) startFast(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fastStop != nil {
		return
	}
	stop := make(chan struct{})
	p.fastStop = stop
	p.wg.Add(1)
	go p.fastLoop(ctx, stop)
	p.logger.InfoContext(ctx, "match window open, fast polling engaged", "interval", p.cfg.FastInterval)
}

func (p *PollScheduler) stopFast() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fastStop == nil {
		return
	}
	close(p.fastStop)
	p.fastStop = nil
	p.logger.Info("match window closed, fast polling disengaged")
}

func (p *PollScheduler) fastRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fastStop != nil
}

func (p *PollScheduler) fastLoop(ctx context.Context, stop <-chan struct{}) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.FastInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			p.submitStandingsRefresh(ctx)
		}
	}
}

func (p *PollScheduler) slowLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.SlowInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.fastRunning() {
				continue
			}
			p.submitStandingsRefresh(ctx)
		}
	}
}

func (p *PollScheduler) seasonLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.SeasonRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.submitSeasonRefresh(ctx)
		}
	}
}

// submitStandingsRefresh hands the fetch to the pool so a slow upstream
// never blocks a ticker. With the pool saturated the tick is dropped,
// the next one retries.
func (p *PollScheduler) submitStandingsRefresh(ctx context.Context) {
	err := p.pool.Submit(func() {
		_, _ = p.standings.RefreshLatest(ctx)
	})
	if err != nil {
		p.logger.WarnContext(ctx, "standings refresh tick dropped", "error", err)
	}
}

func (p *PollScheduler) submitSeasonRefresh(ctx context.Context) {
	err := p.pool.Submit(func() {
		if _, err := p.seasons.RefreshSeason(ctx); err != nil {
			p.logger.WarnContext(ctx, "scheduled season refresh failed", "error", err)
		}
	})
	if err != nil {
		p.logger.WarnContext(ctx, "season refresh tick dropped", "error", err)
	}
}
