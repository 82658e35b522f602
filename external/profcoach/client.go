package profcoach

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/udenfc/super11/internal/domain/competition"
	"github.com/udenfc/super11/internal/platform/logging"
	"github.com/udenfc/super11/internal/platform/resilience"
	"github.com/udenfc/super11/internal/usecase"
)

type ClientConfig struct {
	HTTPClient *http.Client
	Timeout    time.Duration

	GameAPIHost       string
	GameAPIPort       int
	GameAPIStandsPath string

	XClientGame string
	XGameGroup  string

	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client calls the authenticated standings endpoint of the game API.
type Client struct {
	httpClient     *http.Client
	cfg            ClientConfig
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	scheme         string
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.GameAPIHost == "" || cfg.GameAPIStandsPath == "" {
		return nil, crerr.New("standings client needs the game api host and path")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		cfg:            cfg,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
		scheme:         "https",
	}, nil
}

// FetchStandings calls the standings endpoint with the given bearer
// token. A non-200 answer becomes a StandingsFetchError so the caller
// can distinguish token rejection from transport failure.
func (c *Client) FetchStandings(ctx context.Context, token string) (competition.Competition, error) {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			return competition.Competition{}, crerr.Wrap(usecase.ErrDependencyUnavailable, "game api circuit open")
		}
	}

	comp, err := c.fetch(ctx, token)
	if c.circuitEnabled {
		if err != nil {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}
	return comp, err
}

func (c *Client) fetch(ctx context.Context, token string) (competition.Competition, error) {
	endpoint := fmt.Sprintf("%s://%s:%d%s", c.scheme, c.cfg.GameAPIHost, c.cfg.GameAPIPort, c.cfg.GameAPIStandsPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return competition.Competition{}, crerr.Wrap(err, "create standings request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Game", c.cfg.XClientGame)
	req.Header.Set("X-Game-Group", c.cfg.XGameGroup)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return competition.Competition{}, crerr.Wrap(err, "request standings")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return competition.Competition{}, crerr.Wrap(err, "read standings response")
	}

	if resp.StatusCode != http.StatusOK {
		return competition.Competition{}, &usecase.StandingsFetchError{
			HTTPStatus:    resp.StatusCode,
			StatusMessage: http.StatusText(resp.StatusCode),
		}
	}

	comp, err := competition.Parse(body)
	if err != nil {
		return competition.Competition{}, err
	}
	return comp, nil
}
