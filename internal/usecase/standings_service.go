package usecase

import (
	"context"
	"errors"

	"github.com/udenfc/super11/internal/domain/competition"
	"github.com/udenfc/super11/internal/platform/cache"
	"github.com/udenfc/super11/internal/platform/logging"
)

// TopicCompetitionUpdate carries every successful standings refresh to
// subscribers.
const TopicCompetitionUpdate = "competition.update"

// StandingsClient calls the authenticated standings endpoint.
type StandingsClient interface {
	FetchStandings(ctx context.Context, token string) (competition.Competition, error)
}

// TokenSource hands out the cached bearer token and forgets it when a
// request proves it stale.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Publisher is the fire-and-forget publish channel for standings
// updates; delivery is at-most-once.
type Publisher interface {
	Publish(ctx context.Context, topic string, comp competition.Competition)
}

// StandingsService owns the competition cache. It is the only writer;
// readers get the last good value through CachedCompetition and may
// observe a slightly stale copy.
type StandingsService struct {
	client    StandingsClient
	tokens    TokenSource
	publisher Publisher
	cell      *cache.Cell[competition.Competition]
	logger    *logging.Logger
}

func NewStandingsService(client StandingsClient, tokens TokenSource, publisher Publisher, logger *logging.Logger) *StandingsService {
	if logger == nil {
		logger = logging.Default()
	}
	return &StandingsService{
		client:    client,
		tokens:    tokens,
		publisher: publisher,
		cell:      cache.NewCell[competition.Competition](),
		logger:    logger,
	}
}

// RefreshLatest fetches the standings, replaces the cache wholesale and
// publishes the update. On failure the previous cache entry stays
// untouched and the error is returned for the next tick to retry.
func (s *StandingsService) RefreshLatest(ctx context.Context) (competition.Competition, error) {
	comp, err := s.fetchOnceWithReauth(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "standings refresh failed, keeping cached competition", "error", err)
		return competition.Competition{}, err
	}

	s.cell.Set(comp)
	if s.publisher != nil {
		s.publisher.Publish(ctx, TopicCompetitionUpdate, comp)
	}
	s.logger.DebugContext(ctx, "competition cache replaced")
	return comp, nil
}

// fetchOnceWithReauth retries a rejected request exactly once, after
// discarding the cached token and re-running the full acquisition.
func (s *StandingsService) fetchOnceWithReauth(ctx context.Context) (competition.Competition, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return competition.Competition{}, err
	}

	comp, err := s.client.FetchStandings(ctx, token)
	if err == nil {
		return comp, nil
	}

	var fetchErr *StandingsFetchError
	if !errors.As(err, &fetchErr) || !fetchErr.AuthRejected() {
		return competition.Competition{}, err
	}

	s.logger.InfoContext(ctx, "bearer token rejected, re-running acquisition once",
		"http_status", fetchErr.HTTPStatus,
	)
	s.tokens.Invalidate()

	token, err = s.tokens.Token(ctx)
	if err != nil {
		return competition.Competition{}, err
	}
	return s.client.FetchStandings(ctx, token)
}

// CachedCompetition returns the last good standings without blocking.
// Before the first successful fetch it reports ErrCompetitionUnavailable.
func (s *StandingsService) CachedCompetition() (competition.Competition, error) {
	comp, ok := s.cell.Get()
	if !ok {
		return competition.Competition{}, ErrCompetitionUnavailable
	}
	return comp, nil
}
