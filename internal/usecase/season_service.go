package usecase

import (
	"context"
	"errors"
	"time"

	crerr "github.com/cockroachdb/errors"

	"github.com/udenfc/super11/internal/domain/season"
	"github.com/udenfc/super11/internal/infrastructure/blobstore"
	"github.com/udenfc/super11/internal/platform/cache"
	"github.com/udenfc/super11/internal/platform/logging"
)

// SeasonClient fetches the full season schedule from the public feed.
type SeasonClient interface {
	FetchSeason(ctx context.Context) (season.Season, error)
}

// SeasonService keeps the season schedule in memory and mirrors it to
// the blob store so restarts do not have to hit the feed.
type SeasonService struct {
	client SeasonClient
	store  blobstore.Store
	key    string
	cell   *cache.Cell[season.Season]
	logger *logging.Logger
}

func NewSeasonService(client SeasonClient, store blobstore.Store, key string, logger *logging.Logger) *SeasonService {
	if logger == nil {
		logger = logging.Default()
	}
	return &SeasonService{
		client: client,
		store:  store,
		key:    key,
		cell:   cache.NewCell[season.Season](),
		logger: logger,
	}
}

// Load primes the in-memory season, preferring the stored copy and
// falling back to a live fetch when the store is empty or unreadable.
func (s *SeasonService) Load(ctx context.Context) error {
	stored, err := s.loadFromStore(ctx)
	if err == nil {
		s.cell.Set(stored)
		s.logger.InfoContext(ctx, "season loaded from store", "key", s.key)
		return nil
	}
	if !errors.Is(err, blobstore.ErrNotFound) {
		s.logger.WarnContext(ctx, "stored season unusable, fetching fresh", "key", s.key, "error", err)
	}

	_, err = s.RefreshSeason(ctx)
	return err
}

func (s *SeasonService) loadFromStore(ctx context.Context) (season.Season, error) {
	raw, err := s.store.Read(ctx, s.key)
	if err != nil {
		return season.Season{}, err
	}
	sea, err := season.Decode(raw)
	if err != nil {
		return season.Season{}, crerr.Wrap(err, "decode stored season")
	}
	return sea, nil
}

// RefreshSeason replaces the cached season with a fresh fetch and
// writes it back to the store. A store write failure is logged and
// swallowed, the in-memory copy is already current.
func (s *SeasonService) RefreshSeason(ctx context.Context) (season.Season, error) {
	sea, err := s.client.FetchSeason(ctx)
	if err != nil {
		return season.Season{}, err
	}
	s.cell.Set(sea)

	raw, err := season.Encode(sea)
	if err != nil {
		s.logger.WarnContext(ctx, "season encode for persistence failed", "error", err)
		return sea, nil
	}
	if err := s.store.Write(ctx, s.key, raw); err != nil {
		s.logger.WarnContext(ctx, "season persistence failed", "key", s.key, "error", err)
	}
	return sea, nil
}

// CachedSeason returns the in-memory season, or false before Load has
// succeeded.
func (s *SeasonService) CachedSeason() (season.Season, bool) {
	return s.cell.Get()
}

// IsMatchActiveAt reports whether any match is in its live window at
// the given instant. With no season loaded it reports false, the
// scheduler then stays on the slow tier.
func (s *SeasonService) IsMatchActiveAt(at time.Time) bool {
	sea, ok := s.cell.Get()
	if !ok {
		return false
	}
	return sea.IsMatchActiveAt(at)
}

// MatchesActiveAt lists the matches live at the given instant.
func (s *SeasonService) MatchesActiveAt(at time.Time) []season.Match {
	sea, ok := s.cell.Get()
	if !ok {
		return nil
	}
	return sea.MatchesActiveAt(at)
}
