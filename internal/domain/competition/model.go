package competition

import (
	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
)

// Competition is the envelope returned by the game API standings call.
// Data is nil when the API answers with an error envelope or denies
// access.
type Competition struct {
	Version string `json:"version"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Status  string `json:"status"`
	Data    *Data  `json:"data,omitempty"`
}

// Data carries the league standings themselves. Identity is ID.
type Data struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Token          string       `json:"token"`
	Drafts         []Draft      `json:"drafts"`
	DraftsMetadata PageMetadata `json:"draftsMetadata"`
}

// Draft is one row of the standings table. Identity is ID.
type Draft struct {
	ID             string `json:"id"`
	DraftName      string `json:"draftName"`
	TotalPoints    int64  `json:"totalPoints"`
	Rank           int    `json:"rank"`
	Movement       int    `json:"movement"`
	Points         int    `json:"points"`
	PreviousPoints int    `json:"previousPoints"`
	PreviousRank   int    `json:"previousRank"`
	IsUser         bool   `json:"isUser"`
	IsEmpty        bool   `json:"isEmpty"`
	Highlighted    bool   `json:"highLight"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
}

type PageMetadata struct {
	PageIndex       int  `json:"pageIndex"`
	PageSize        int  `json:"pageSize"`
	TotalCount      int  `json:"totalCount"`
	TotalPages      int  `json:"totalPages"`
	HasPreviousPage bool `json:"hasPreviousPage"`
	HasNextPage     bool `json:"hasNextPage"`
}

// StandingsRow is the projection pushed to subscribed clients.
type StandingsRow struct {
	Rank        int    `json:"rank"`
	DraftName   string `json:"draftName"`
	Points      int    `json:"points"`
	TotalPoints int64  `json:"totalPoints"`
}

// Parse decodes a standings response body.
func Parse(body []byte) (Competition, error) {
	var c Competition
	if err := sonic.Unmarshal(body, &c); err != nil {
		return Competition{}, crerr.Wrap(err, "decode competition envelope")
	}
	if c.Data != nil && c.Data.ID == "" {
		return Competition{}, crerr.New("competition data is missing an id")
	}
	return c, nil
}

// StandingsRows projects the standings table for broadcast. Returns an
// empty slice when the envelope carries no data.
func (c Competition) StandingsRows() []StandingsRow {
	if c.Data == nil {
		return nil
	}
	rows := make([]StandingsRow, 0, len(c.Data.Drafts))
	for _, draft := range c.Data.Drafts {
		rows = append(rows, StandingsRow{
			Rank:        draft.Rank,
			DraftName:   draft.DraftName,
			Points:      draft.Points,
			TotalPoints: draft.TotalPoints,
		})
	}
	return rows
}
