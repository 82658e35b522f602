package usecase

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	crerr "github.com/cockroachdb/errors"

	"github.com/udenfc/super11/internal/domain/competition"
)

type scriptedStandingsClient struct {
	mu      sync.Mutex
	calls   int
	results []error
	comp    competition.Competition
}

func (c *scriptedStandingsClient) FetchStandings(context.Context, string) (competition.Competition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.calls < len(c.results) {
		err = c.results[c.calls]
	}
	c.calls++
	if err != nil {
		return competition.Competition{}, err
	}
	return c.comp, nil
}

func (c *scriptedStandingsClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeTokenSource struct {
	mu          sync.Mutex
	invalidated int
	err         error
}

func (f *fakeTokenSource) Token(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token", nil
}

func (f *fakeTokenSource) Invalidate() {
	f.mu.Lock()
	f.invalidated++
	f.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ competition.Competition) {
	p.mu.Lock()
	p.topics = append(p.topics, topic)
	p.mu.Unlock()
}

func testCompetition(id string) competition.Competition {
	return competition.Competition{
		Data: &competition.Data{
			ID:     id,
			Drafts: []competition.Draft{{ID: "d1", DraftName: "De Toppers", Rank: 1}},
		},
	}
}

func TestStandingsService_RefreshPopulatesCacheAndPublishes(t *testing.T) {
	client := &scriptedStandingsClient{comp: testCompetition("c1")}
	publisher := &recordingPublisher{}
	svc := NewStandingsService(client, &fakeTokenSource{}, publisher, nil)

	if _, err := svc.CachedCompetition(); !errors.Is(err, ErrCompetitionUnavailable) {
		t.Fatalf("expected ErrCompetitionUnavailable before first refresh, got %v", err)
	}

	comp, err := svc.RefreshLatest(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if comp.Data.ID != "c1" {
		t.Fatalf("unexpected competition: %+v", comp)
	}

	cached, err := svc.CachedCompetition()
	if err != nil {
		t.Fatalf("cached competition: %v", err)
	}
	if cached.Data.ID != "c1" {
		t.Fatalf("cache holds wrong competition: %+v", cached)
	}
	if len(publisher.topics) != 1 || publisher.topics[0] != TopicCompetitionUpdate {
		t.Fatalf("unexpected publishes: %v", publisher.topics)
	}
}

func TestStandingsService_FailureLeavesCacheUntouched(t *testing.T) {
	client := &scriptedStandingsClient{comp: testCompetition("c1"), results: []error{nil, crerr.New("boom")}}
	publisher := &recordingPublisher{}
	svc := NewStandingsService(client, &fakeTokenSource{}, publisher, nil)

	ctx := context.Background()
	if _, err := svc.RefreshLatest(ctx); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if _, err := svc.RefreshLatest(ctx); err == nil {
		t.Fatalf("expected second refresh to fail")
	}

	cached, err := svc.CachedCompetition()
	if err != nil {
		t.Fatalf("cached competition after failure: %v", err)
	}
	if cached.Data.ID != "c1" {
		t.Fatalf("failed refresh must not disturb the cache: %+v", cached)
	}
	if len(publisher.topics) != 1 {
		t.Fatalf("failed refresh must not publish, got %d publishes", len(publisher.topics))
	}
}

func TestStandingsService_RetriesOnceAfterTokenRejection(t *testing.T) {
	rejection := &StandingsFetchError{HTTPStatus: http.StatusUnauthorized, StatusMessage: "Unauthorized"}
	client := &scriptedStandingsClient{comp: testCompetition("c1"), results: []error{rejection, nil}}
	tokens := &fakeTokenSource{}
	svc := NewStandingsService(client, tokens, nil, nil)

	comp, err := svc.RefreshLatest(context.Background())
	if err != nil {
		t.Fatalf("refresh with retry: %v", err)
	}
	if comp.Data.ID != "c1" {
		t.Fatalf("unexpected competition after retry: %+v", comp)
	}
	if client.callCount() != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", client.callCount())
	}
	if tokens.invalidated != 1 {
		t.Fatalf("token must be invalidated once, got %d", tokens.invalidated)
	}
}

func TestStandingsService_SecondRejectionIsFinal(t *testing.T) {
	rejection := &StandingsFetchError{HTTPStatus: http.StatusForbidden, StatusMessage: "Forbidden"}
	client := &scriptedStandingsClient{results: []error{rejection, rejection}}
	tokens := &fakeTokenSource{}
	svc := NewStandingsService(client, tokens, nil, nil)

	_, err := svc.RefreshLatest(context.Background())
	var fetchErr *StandingsFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected StandingsFetchError, got %v", err)
	}
	if client.callCount() != 2 {
		t.Fatalf("only one retry is allowed, got %d calls", client.callCount())
	}
	if tokens.invalidated != 1 {
		t.Fatalf("only one invalidation is allowed, got %d", tokens.invalidated)
	}
}

func TestStandingsService_ServerErrorDoesNotRetry(t *testing.T) {
	serverErr := &StandingsFetchError{HTTPStatus: http.StatusBadGateway, StatusMessage: "Bad Gateway"}
	client := &scriptedStandingsClient{results: []error{serverErr}}
	tokens := &fakeTokenSource{}
	svc := NewStandingsService(client, tokens, nil, nil)

	if _, err := svc.RefreshLatest(context.Background()); err == nil {
		t.Fatalf("expected refresh failure")
	}
	if client.callCount() != 1 {
		t.Fatalf("non-auth failures must not retry, got %d calls", client.callCount())
	}
	if tokens.invalidated != 0 {
		t.Fatalf("non-auth failures must not invalidate the token")
	}
}
