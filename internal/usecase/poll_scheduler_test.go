package usecase

import (
	"context"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T, standingsClient StandingsClient, seasonClient SeasonClient, cfg PollSchedulerConfig) *PollScheduler {
	t.Helper()
	standings := NewStandingsService(standingsClient, &fakeTokenSource{}, nil, nil)
	seasons := NewSeasonService(seasonClient, newMemBlobStore(), "season.json", nil)

	scheduler, err := NewPollScheduler(standings, seasons, cfg, nil)
	if err != nil {
		t.Fatalf("build scheduler: %v", err)
	}
	return scheduler
}

func TestPollScheduler_StartFastIsIdempotent(t *testing.T) {
	start := time.Date(2019, 4, 13, 16, 30, 0, 0, time.UTC)
	scheduler := newTestScheduler(t,
		&scriptedStandingsClient{comp: testCompetition("c1")},
		&fakeSeasonClient{sea: fixtureSeason(start)},
		PollSchedulerConfig{FastInterval: time.Hour},
	)
	defer scheduler.pool.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler.startFast(ctx)
	first := scheduler.fastStop
	scheduler.startFast(ctx)
	if scheduler.fastStop != first {
		t.Fatalf("second start must not replace the running fast loop")
	}
	if !scheduler.fastRunning() {
		t.Fatalf("expected fast tier running")
	}

	scheduler.stopFast()
	if scheduler.fastRunning() {
		t.Fatalf("expected fast tier stopped")
	}
	// Repeat stop is a no-op.
	scheduler.stopFast()

	cancel()
	scheduler.wg.Wait()
}

func TestPollScheduler_EvaluateFollowsLiveWindow(t *testing.T) {
	start := time.Date(2019, 4, 13, 16, 30, 0, 0, time.UTC)
	scheduler := newTestScheduler(t,
		&scriptedStandingsClient{comp: testCompetition("c1")},
		&fakeSeasonClient{sea: fixtureSeason(start)},
		PollSchedulerConfig{FastInterval: time.Hour},
	)
	defer scheduler.pool.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.seasons.Load(ctx); err != nil {
		t.Fatalf("load season: %v", err)
	}

	at := start
	scheduler.now = func() time.Time { return at }

	scheduler.evaluate(ctx)
	if !scheduler.fastRunning() {
		t.Fatalf("live window must engage the fast tier")
	}

	// Re-observing the same state changes nothing.
	scheduler.evaluate(ctx)
	if !scheduler.fastRunning() {
		t.Fatalf("repeat observation must keep the fast tier running")
	}

	at = start.Add(3 * time.Hour)
	scheduler.evaluate(ctx)
	if scheduler.fastRunning() {
		t.Fatalf("closed window must disengage the fast tier")
	}

	at = start.Add(4 * time.Hour)
	scheduler.evaluate(ctx)
	if scheduler.fastRunning() {
		t.Fatalf("repeat idle observation must stay idle")
	}

	cancel()
	scheduler.wg.Wait()
}

func TestPollScheduler_StartWarmsUpAndStops(t *testing.T) {
	start := time.Date(2019, 4, 13, 16, 30, 0, 0, time.UTC)
	standingsClient := &scriptedStandingsClient{comp: testCompetition("c1")}
	seasonClient := &fakeSeasonClient{sea: fixtureSeason(start)}
	scheduler := newTestScheduler(t, standingsClient, seasonClient, PollSchedulerConfig{
		CheckInterval:         time.Hour,
		FastInterval:          time.Hour,
		SlowInterval:          time.Hour,
		SeasonRefreshInterval: time.Hour,
	})

	scheduler.Start(context.Background())

	if standingsClient.callCount() != 1 {
		t.Fatalf("warm-up must fetch standings once, got %d", standingsClient.callCount())
	}
	if seasonClient.callCount() != 1 {
		t.Fatalf("warm-up must fetch the season once, got %d", seasonClient.callCount())
	}
	if _, err := scheduler.standings.CachedCompetition(); err != nil {
		t.Fatalf("competition cache empty after warm-up: %v", err)
	}
	if _, ok := scheduler.seasons.CachedSeason(); !ok {
		t.Fatalf("season cache empty after warm-up")
	}

	scheduler.Stop()
}
