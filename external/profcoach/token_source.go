package profcoach

import (
	"context"
	"strings"
	"sync"

	crerr "github.com/cockroachdb/errors"
	"github.com/udenfc/super11/internal/infrastructure/blobstore"
	"github.com/udenfc/super11/internal/platform/logging"
	"github.com/udenfc/super11/internal/platform/resilience"
)

// Acquirer mints a fresh bearer token via the full handshake.
type Acquirer interface {
	Acquire(ctx context.Context) (string, error)
}

// TokenSource owns the cached bearer token. It is the only writer of
// the token cell and of the persisted token blob. The token has no
// self-describing expiry; staleness shows up as a rejected standings
// request, at which point the caller invalidates and asks again.
type TokenSource struct {
	acquirer Acquirer
	store    blobstore.Store
	key      string
	logger   *logging.Logger

	mu     sync.RWMutex
	cached string
	flight resilience.SingleFlight
}

func NewTokenSource(acquirer Acquirer, store blobstore.Store, key string, logger *logging.Logger) (*TokenSource, error) {
	if acquirer == nil {
		return nil, crerr.New("token source needs an acquirer")
	}
	if store == nil {
		return nil, crerr.New("token source needs a blob store")
	}
	if key == "" {
		return nil, crerr.New("token source needs a storage key")
	}
	if logger == nil {
		logger = logging.Default()
	}

	s := &TokenSource{
		acquirer: acquirer,
		store:    store,
		key:      key,
		logger:   logger,
	}
	s.warmFromStore()
	return s, nil
}

// warmFromStore seeds the cache with a token persisted by a previous
// process. A missing or unreadable blob just means the first Token
// call runs the handshake.
func (s *TokenSource) warmFromStore() {
	ctx := context.Background()
	exists, err := s.store.Exists(ctx, s.key)
	if err != nil || !exists {
		if err != nil {
			s.logger.Warn("could not probe persisted token", "error", err)
		}
		return
	}
	data, err := s.store.Read(ctx, s.key)
	if err != nil {
		s.logger.Warn("could not read persisted token, starting without one", "error", err)
		return
	}
	if token := strings.TrimSpace(string(data)); token != "" {
		s.mu.Lock()
		s.cached = token
		s.mu.Unlock()
		s.logger.Debug("reusing persisted bearer token")
	}
}

// Token returns the cached bearer token, acquiring one through the
// handshake only when nothing is cached. Concurrent callers share one
// handshake.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != "" {
		return cached, nil
	}

	value, err, _ := s.flight.Do("acquire", func() (any, error) {
		s.mu.RLock()
		again := s.cached
		s.mu.RUnlock()
		if again != "" {
			return again, nil
		}

		token, err := s.acquirer.Acquire(ctx)
		if err != nil {
			return "", err
		}

		s.mu.Lock()
		s.cached = token
		s.mu.Unlock()

		// Persisting is best-effort; the in-memory token carries the
		// process either way.
		if err := s.store.Write(ctx, s.key, []byte(token)); err != nil {
			s.logger.WarnContext(ctx, "could not persist bearer token", "error", err)
		}
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// Invalidate forgets the cached token so the next Token call re-runs
// the handshake. Safe to call when nothing is cached.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.cached = ""
	s.mu.Unlock()
}
