package competition

import (
	"testing"
)

const samplePayload = `{
	"version": "1.0",
	"error": false,
	"message": "",
	"status": "ok",
	"data": {
		"id": "comp-eredivisie-2019",
		"name": "Super 11",
		"token": "league-token",
		"drafts": [
			{"id": "d1", "draftName": "De Toppers", "totalPoints": 1204, "rank": 1, "movement": 1, "points": 58, "previousPoints": 44, "previousRank": 2, "isUser": true, "highLight": true},
			{"id": "d2", "draftName": "Lucky Eleven", "totalPoints": 1188, "rank": 2, "movement": -1, "points": 41, "previousPoints": 60, "previousRank": 1}
		],
		"draftsMetadata": {"pageIndex": 0, "pageSize": 50, "totalCount": 2, "totalPages": 1}
	}
}`

func TestParse_FullEnvelope(t *testing.T) {
	comp, err := Parse([]byte(samplePayload))
	if err != nil {
		t.Fatalf("parse competition: %v", err)
	}

	if comp.Data == nil {
		t.Fatalf("expected data in envelope")
	}
	if comp.Data.ID != "comp-eredivisie-2019" {
		t.Fatalf("unexpected competition id: %s", comp.Data.ID)
	}
	if len(comp.Data.Drafts) != 2 {
		t.Fatalf("unexpected draft count: got=%d want=2", len(comp.Data.Drafts))
	}
	if !comp.Data.Drafts[0].Highlighted {
		t.Fatalf("expected highLight to map onto Highlighted")
	}
	if comp.Data.Drafts[1].Movement != -1 {
		t.Fatalf("unexpected movement: got=%d want=-1", comp.Data.Drafts[1].Movement)
	}
}

func TestParse_ErrorEnvelopeWithoutData(t *testing.T) {
	comp, err := Parse([]byte(`{"version":"1.0","error":true,"message":"denied","status":"403"}`))
	if err != nil {
		t.Fatalf("parse envelope: %v", err)
	}
	if comp.Data != nil {
		t.Fatalf("expected nil data for error envelope")
	}
	if !comp.Error {
		t.Fatalf("expected error flag set")
	}
}

func TestParse_DataWithoutID(t *testing.T) {
	if _, err := Parse([]byte(`{"data":{"name":"x"}}`)); err == nil {
		t.Fatalf("expected error when data has no id")
	}
}

func TestStandingsRows_Projection(t *testing.T) {
	comp, err := Parse([]byte(samplePayload))
	if err != nil {
		t.Fatalf("parse competition: %v", err)
	}

	rows := comp.StandingsRows()
	if len(rows) != 2 {
		t.Fatalf("unexpected row count: got=%d want=2", len(rows))
	}
	if rows[0].DraftName != "De Toppers" || rows[0].Rank != 1 || rows[0].TotalPoints != 1204 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}

	var empty Competition
	if got := empty.StandingsRows(); got != nil {
		t.Fatalf("expected nil rows without data, got %v", got)
	}
}
