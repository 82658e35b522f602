package profcoach

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/udenfc/super11/internal/usecase"
)

func newStandingsClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	parsed, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(parsed.Host)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	client, err := NewClient(ClientConfig{
		HTTPClient:        srv.Client(),
		GameAPIHost:       host,
		GameAPIPort:       port,
		GameAPIStandsPath: "/api/v2/competitions/stands",
		XClientGame:       "superelf",
		XGameGroup:        "eredivisie",
	})
	if err != nil {
		t.Fatalf("build standings client: %v", err)
	}
	client.scheme = "http"
	return client
}

func TestFetchStandings_Success(t *testing.T) {
	client := newStandingsClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer bearer-token" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		if r.Header.Get("X-Client-Game") != "superelf" || r.Header.Get("X-Game-Group") != "eredivisie" {
			t.Errorf("game headers missing: %v", r.Header)
		}
		_, _ = w.Write([]byte(`{"data": {"id": "c1", "name": "Super 11", "drafts": [
			{"id": "d1", "draftName": "De Toppers", "rank": 1, "points": 58, "totalPoints": 1204}
		]}}`))
	})

	comp, err := client.FetchStandings(context.Background(), "bearer-token")
	if err != nil {
		t.Fatalf("fetch standings: %v", err)
	}
	if comp.Data == nil || comp.Data.ID != "c1" {
		t.Fatalf("unexpected competition: %+v", comp)
	}
	if len(comp.Data.Drafts) != 1 || comp.Data.Drafts[0].Rank != 1 {
		t.Fatalf("unexpected drafts: %+v", comp.Data.Drafts)
	}
}

func TestFetchStandings_RejectionStatuses(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		client := newStandingsClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})

		_, err := client.FetchStandings(context.Background(), "stale-token")
		var fetchErr *usecase.StandingsFetchError
		if !errors.As(err, &fetchErr) {
			t.Fatalf("status %d: expected StandingsFetchError, got %v", status, err)
		}
		if fetchErr.HTTPStatus != status {
			t.Fatalf("unexpected status: got=%d want=%d", fetchErr.HTTPStatus, status)
		}
		if !fetchErr.AuthRejected() {
			t.Fatalf("status %d must count as auth rejection", status)
		}
	}
}

func TestFetchStandings_ServerErrorIsNotAuthRejection(t *testing.T) {
	client := newStandingsClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.FetchStandings(context.Background(), "token")
	var fetchErr *usecase.StandingsFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected StandingsFetchError, got %v", err)
	}
	if fetchErr.AuthRejected() {
		t.Fatalf("500 must not count as auth rejection")
	}
}
