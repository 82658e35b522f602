package season

import (
	"testing"
	"time"
)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load zone %s: %v", name, err)
	}
	return loc
}

func testSeason(start time.Time) Season {
	return Season{
		Name:        "2018/2019",
		Country:     "NL",
		LastUpdated: start.Add(-24 * time.Hour),
		Rounds: []Round{
			{
				Number:         30,
				ScheduledStart: start,
				ScheduledEnd:   start.Add(72 * time.Hour),
				Matches: []Match{
					{
						Home:           Team{ID: "9", Name: "Ajax"},
						Away:           Team{ID: "11", Name: "Feyenoord"},
						ScheduledStart: start,
					},
					{
						Home:           Team{ID: "14", Name: "PSV"},
						Away:           Team{ID: "3", Name: "AZ"},
						ScheduledStart: start.Add(26 * time.Hour),
					},
				},
			},
		},
	}
}

func TestMatchActiveAt_WindowBoundaries(t *testing.T) {
	start := time.Date(2019, 4, 13, 18, 30, 0, 0, time.UTC)
	match := Match{ScheduledStart: start}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before kickoff", start.Add(-time.Second), false},
		{"exact kickoff", start, true},
		{"mid match", start.Add(45 * time.Minute), true},
		{"last active second", start.Add(MatchDuration - time.Second), true},
		{"exact window end", start.Add(MatchDuration), false},
		{"after window", start.Add(3 * time.Hour), false},
	}
	for _, tc := range cases {
		if got := match.ActiveAt(tc.at); got != tc.want {
			t.Fatalf("%s: ActiveAt(%s)=%v want %v", tc.name, tc.at, got, tc.want)
		}
	}
}

func TestSeasonMatchesActiveAt_SubsetOfRound(t *testing.T) {
	start := time.Date(2019, 4, 13, 18, 30, 0, 0, time.UTC)
	sea := testSeason(start)

	active := sea.MatchesActiveAt(start.Add(10 * time.Minute))
	if len(active) != 1 {
		t.Fatalf("unexpected active match count: got=%d want=1", len(active))
	}
	if active[0].Home.Name != "Ajax" {
		t.Fatalf("unexpected active match: got=%s", active[0].Home.Name)
	}
	if !sea.IsMatchActiveAt(start.Add(10 * time.Minute)) {
		t.Fatalf("expected active window during first match")
	}

	// Inside the round window but between matches.
	if sea.IsMatchActiveAt(start.Add(5 * time.Hour)) {
		t.Fatalf("expected no live match between fixtures")
	}
	if got := sea.MatchesActiveAt(start.Add(5 * time.Hour)); len(got) != 0 {
		t.Fatalf("expected empty slice between fixtures, got %d", len(got))
	}

	// Outside every round window.
	if got := sea.MatchesActiveAt(start.Add(30 * 24 * time.Hour)); got != nil {
		t.Fatalf("expected nil outside round windows, got %v", got)
	}
}

func TestSeasonRoundAt_FirstMatchWinsOnOverlap(t *testing.T) {
	start := time.Date(2019, 4, 13, 18, 30, 0, 0, time.UTC)
	overlap := Season{
		Rounds: []Round{
			{
				Number:         30,
				ScheduledStart: start,
				ScheduledEnd:   start.Add(96 * time.Hour),
				Matches:        []Match{{ScheduledStart: start}},
			},
			{
				Number:         31,
				ScheduledStart: start.Add(48 * time.Hour),
				ScheduledEnd:   start.Add(120 * time.Hour),
				Matches:        []Match{{ScheduledStart: start.Add(49 * time.Hour)}},
			},
		},
	}

	// Both windows cover this instant; only round 30's matches are
	// consulted, and none of them is live, so the season reads idle.
	at := start.Add(49*time.Hour + 10*time.Minute)
	if overlap.IsMatchActiveAt(at) {
		t.Fatalf("expected first containing round to mask the later one")
	}
}

func TestSeasonCodec_RoundTrip(t *testing.T) {
	ams := mustZone(t, "Europe/Amsterdam")
	start := time.Date(2019, 4, 13, 20, 30, 0, 0, ams)
	sea := testSeason(start)

	raw, err := Encode(sea)
	if err != nil {
		t.Fatalf("encode season: %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode season: %v", err)
	}

	if !Equal(sea, decoded) {
		t.Fatalf("season changed across encode/decode:\nbefore=%+v\nafter=%+v", sea, decoded)
	}
}

func TestSeasonDecode_Garbage(t *testing.T) {
	if _, err := Decode([]byte("{not json")); err == nil {
		t.Fatalf("expected decode error for malformed payload")
	}
}
