package season

import (
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
)

// MatchDuration is the assumed length of a match. The fixtures source
// gives no authoritative end signal, so a match counts as live from its
// scheduled start until this long after it.
const MatchDuration = 110 * time.Minute

type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Match struct {
	Home           Team      `json:"home"`
	Away           Team      `json:"away"`
	ScheduledStart time.Time `json:"scheduledStart"`
}

// ActiveAt reports whether the match is in progress at the given
// instant. The start is inclusive, the assumed end exclusive.
func (m Match) ActiveAt(at time.Time) bool {
	return !at.Before(m.ScheduledStart) && at.Before(m.ScheduledStart.Add(MatchDuration))
}

// Round is a numbered set of matches inside a bounded time window.
// ScheduledEnd deliberately overshoots to the local midnight after the
// source's own end timestamp, because the source under-reports
// completion time.
type Round struct {
	Number         int       `json:"round"`
	ScheduledStart time.Time `json:"scheduledStart"`
	ScheduledEnd   time.Time `json:"scheduledEnd"`
	Matches        []Match   `json:"matches"`
}

func (r Round) containsInstant(at time.Time) bool {
	return !at.Before(r.ScheduledStart) && at.Before(r.ScheduledEnd)
}

// Season is the full fixture calendar. Rounds are kept in ascending
// number order; the source does not guarantee non-overlapping windows,
// so lookups take the first round that contains an instant.
type Season struct {
	Name        string    `json:"name"`
	Country     string    `json:"country"`
	LastUpdated time.Time `json:"lastUpdated"`
	Rounds      []Round   `json:"rounds"`
}

// roundAt returns the first round whose window contains the instant.
func (s Season) roundAt(at time.Time) (Round, bool) {
	for _, round := range s.Rounds {
		if round.containsInstant(at) {
			return round, true
		}
	}
	return Round{}, false
}

// IsMatchActiveAt reports whether at least one match of the round
// containing the instant is live at that instant.
func (s Season) IsMatchActiveAt(at time.Time) bool {
	return len(s.MatchesActiveAt(at)) > 0
}

// MatchesActiveAt returns the matches live at the instant, or an empty
// slice when no round covers it. It never fails.
func (s Season) MatchesActiveAt(at time.Time) []Match {
	round, ok := s.roundAt(at)
	if !ok {
		return nil
	}
	var active []Match
	for _, match := range round.Matches {
		if match.ActiveAt(at) {
			active = append(active, match)
		}
	}
	return active
}

// Encode serializes the season for the blob store.
func Encode(s Season) ([]byte, error) {
	data, err := sonic.Marshal(s)
	if err != nil {
		return nil, crerr.Wrap(err, "encode season")
	}
	return data, nil
}

// Decode restores a season previously written by Encode.
func Decode(data []byte) (Season, error) {
	var s Season
	if err := sonic.Unmarshal(data, &s); err != nil {
		return Season{}, crerr.Wrap(err, "decode season")
	}
	return s, nil
}

// Equal compares two seasons including round and match ordering.
// Instants compare by time.Equal so differing wall-clock zones of the
// same moment still match.
func Equal(a, b Season) bool {
	if a.Name != b.Name || a.Country != b.Country || !a.LastUpdated.Equal(b.LastUpdated) {
		return false
	}
	if len(a.Rounds) != len(b.Rounds) {
		return false
	}
	for i := range a.Rounds {
		if !roundEqual(a.Rounds[i], b.Rounds[i]) {
			return false
		}
	}
	return true
}

func roundEqual(a, b Round) bool {
	if a.Number != b.Number || !a.ScheduledStart.Equal(b.ScheduledStart) || !a.ScheduledEnd.Equal(b.ScheduledEnd) {
		return false
	}
	if len(a.Matches) != len(b.Matches) {
		return false
	}
	for i := range a.Matches {
		if a.Matches[i].Home != b.Matches[i].Home || a.Matches[i].Away != b.Matches[i].Away {
			return false
		}
		if !a.Matches[i].ScheduledStart.Equal(b.Matches[i].ScheduledStart) {
			return false
		}
	}
	return true
}
