package eredivisie

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/udenfc/super11/internal/domain/season"
	"github.com/udenfc/super11/internal/platform/logging"
	"github.com/udenfc/super11/internal/platform/resilience"
	"github.com/udenfc/super11/internal/usecase"
)

const (
	defaultBaseURL    = "https://eredivisie.nl"
	allRoundsPath     = "/nl-nl/DesktopModules/DotControl/DCEredivisieLive/API/Match/GetAllRounds"
	defaultModuleID   = "416"
	defaultTabID      = "95"
	defaultSeasonName = "Eredivisie"
	defaultCountry    = "NL"

	// Fixture timestamps come without a zone marker and represent the
	// site's own civil time.
	rawDateLayout = "2006-01-02T15:04:05"
)

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	SourceTimezone string
	HomeTimezone   string
	SeasonName     string
	Country        string
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client fetches the season fixture calendar from the public,
// unauthenticated rounds endpoint and maps it to the domain model.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	seasonName     string
	country        string
	sourceZone     *time.Location
	homeZone       *time.Location
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	now            func() time.Time
}

func NewClient(cfg ClientConfig) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 20 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	sourceZone, err := loadZone(cfg.SourceTimezone)
	if err != nil {
		return nil, crerr.Wrap(err, "load source timezone")
	}
	homeZone, err := loadZone(cfg.HomeTimezone)
	if err != nil {
		return nil, crerr.Wrap(err, "load home timezone")
	}

	seasonName := cfg.SeasonName
	if seasonName == "" {
		seasonName = defaultSeasonName
	}
	country := cfg.Country
	if country == "" {
		country = defaultCountry
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		seasonName:     seasonName,
		country:        country,
		sourceZone:     sourceZone,
		homeZone:       homeZone,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
		now:            time.Now,
	}, nil
}

func loadZone(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		name = "Europe/Amsterdam"
	}
	return time.LoadLocation(name)
}

// FetchSeason downloads the full round calendar and maps it. Any
// malformed round fails the whole season; the caller keeps whatever it
// had cached before.
func (c *Client) FetchSeason(ctx context.Context) (season.Season, error) {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			return season.Season{}, crerr.Wrap(usecase.ErrDependencyUnavailable, "fixtures source circuit open")
		}
	}

	rounds, err := c.fetchRawRounds(ctx)
	if err != nil {
		if c.circuitEnabled {
			c.breaker.RecordFailure()
		}
		return season.Season{}, err
	}
	if c.circuitEnabled {
		c.breaker.RecordSuccess()
	}

	mapped, err := c.mapSeason(rounds)
	if err != nil {
		return season.Season{}, err
	}

	c.logger.InfoContext(ctx, "season calendar refreshed",
		"rounds", len(mapped.Rounds),
		"season", mapped.Name,
	)
	return mapped, nil
}

func (c *Client) fetchRawRounds(ctx context.Context) ([]rawRound, error) {
	endpoint := c.baseURL + allRoundsPath
	query := url.Values{}
	query.Set("moduleId", defaultModuleID)
	query.Set("tabId", defaultTabID)
	query.Set("showNext", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, crerr.Wrap(err, "create rounds request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, crerr.Wrap(err, "request season rounds")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, crerr.Wrap(err, "read rounds response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, crerr.Newf("rounds endpoint answered with status %d", resp.StatusCode)
	}

	var rounds []rawRound
	if err := sonic.Unmarshal(body, &rounds); err != nil {
		return nil, &usecase.MalformedScheduleError{Reason: "rounds response is not a round array", Err: err}
	}
	return rounds, nil
}

// mapSeason flattens the raw round list into the domain season.
func (c *Client) mapSeason(rounds []rawRound) (season.Season, error) {
	mapped := make([]season.Round, 0, len(rounds))
	for _, raw := range rounds {
		round, err := c.mapRound(raw)
		if err != nil {
			return season.Season{}, err
		}
		mapped = append(mapped, round)
	}

	sort.SliceStable(mapped, func(i, j int) bool {
		return mapped[i].Number < mapped[j].Number
	})

	return season.Season{
		Name:        c.seasonName,
		Country:     c.country,
		LastUpdated: c.now().UTC(),
		Rounds:      mapped,
	}, nil
}

func (c *Client) mapRound(raw rawRound) (season.Round, error) {
	number, err := strconv.Atoi(strings.TrimSpace(raw.Round))
	if err != nil {
		return season.Round{}, &usecase.MalformedScheduleError{
			Reason: "round label is not numeric: " + raw.Round,
			Err:    err,
		}
	}
	if len(raw.Matches) == 0 {
		return season.Round{}, &usecase.MalformedScheduleError{
			Reason: "round " + raw.Round + " has no matches",
		}
	}

	// The earliest match opens the round; raw date strings sort
	// chronologically as plain strings.
	ordered := make([]rawMatch, len(raw.Matches))
	copy(ordered, raw.Matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date < ordered[j].Date
	})

	matches := make([]season.Match, 0, len(ordered))
	for _, item := range ordered {
		match, err := c.mapMatch(item)
		if err != nil {
			return season.Round{}, err
		}
		matches = append(matches, match)
	}

	end, err := c.roundEnd(raw.EndDate)
	if err != nil {
		return season.Round{}, err
	}

	return season.Round{
		Number:         number,
		ScheduledStart: matches[0].ScheduledStart,
		ScheduledEnd:   end,
		Matches:        matches,
	}, nil
}

func (c *Client) mapMatch(raw rawMatch) (season.Match, error) {
	start, err := c.parseSourceTime(raw.Date)
	if err != nil {
		return season.Match{}, &usecase.MalformedScheduleError{
			Reason: "match " + raw.GameID + " has an unparseable date: " + raw.Date,
			Err:    err,
		}
	}
	return season.Match{
		Home:           season.Team{ID: raw.Team1ID, Name: raw.Team1Name},
		Away:           season.Team{ID: raw.Team2ID, Name: raw.Team2Name},
		ScheduledStart: start,
	}, nil
}

// roundEnd parses the source's end date and rounds it forward to the
// start of the next calendar day in the home zone. The source's own
// end timestamp under-reports true completion time, so the overshoot
// is intentional.
func (c *Client) roundEnd(endDate string) (time.Time, error) {
	parsed, err := c.parseSourceTime(endDate)
	if err != nil {
		return time.Time{}, &usecase.MalformedScheduleError{
			Reason: "round end date is unparseable: " + endDate,
			Err:    err,
		}
	}
	local := parsed.In(c.homeZone)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.homeZone)
	return midnight.AddDate(0, 0, 1).UTC(), nil
}

func (c *Client) parseSourceTime(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation(rawDateLayout, strings.TrimSpace(value), c.sourceZone)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

// rawRound mirrors one entry of the rounds payload; only the fields
// the mapping needs are declared.
type rawRound struct {
	Round   string     `json:"round"`
	Title   string     `json:"title"`
	FromTo  string     `json:"fromto"`
	Active  string     `json:"active"`
	EndDate string     `json:"enddate"`
	Matches []rawMatch `json:"matches"`
}

type rawMatch struct {
	GameID    string `json:"gameId"`
	Date      string `json:"date"`
	Team1ID   string `json:"team1ID"`
	Team1Name string `json:"team1Name"`
	Team2ID   string `json:"team2ID"`
	Team2Name string `json:"team2Name"`
}
