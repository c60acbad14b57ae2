package reconcile

import (
	"context"
	"testing"

	"github.com/pable/go-nfl-metrics/internal/model"
	"github.com/pable/go-nfl-metrics/internal/storage"
)

const (
	rbID int64 = 10
	wrID int64 = 11
)

func weekly(id int64, week int, rush, rec *float64) model.GameStat {
	return model.GameStat{PlayerID: id, Week: week,
		EPAMetrics: model.EPAMetrics{RushingEPA: rush, ReceivingEPA: rec}}
}

func TestCompareWithinTolerance(t *testing.T) {
	rows := []model.GameStat{
		weekly(rbID, 1, model.Float(1.00), nil),
		weekly(rbID, 2, model.Float(0.55), model.Float(0.2)),
		{PlayerID: rbID, Week: model.SeasonWeek, EPAMetrics: model.EPAMetrics{RushingEPA: model.Float(99)}},
	}
	adv := []model.AdvancedMetrics{{PlayerID: rbID, EPAMetrics: model.EPAMetrics{
		RushingEPA: model.Float(1.5), ReceivingEPA: model.Float(0.2)}}}

	if got := Compare(2024, rows, adv); len(got) != 0 {
		t.Errorf("expected no mismatches, got %+v", got)
	}
}

func TestCompareReportsEachRole(t *testing.T) {
	rows := []model.GameStat{
		weekly(rbID, 1, model.Float(2), model.Float(1)),
		weekly(wrID, 1, nil, model.Float(0.5)),
	}
	adv := []model.AdvancedMetrics{{PlayerID: rbID, EPAMetrics: model.EPAMetrics{
		RushingEPA: model.Float(1.95), ReceivingEPA: model.Float(0.5)}}}

	got := Compare(2023, rows, adv)
	if len(got) != 2 {
		t.Fatalf("expected 2 mismatches, got %+v", got)
	}
	if got[0].PlayerID != rbID || got[0].Role != "receiving" {
		t.Errorf("first mismatch = %+v, want rb receiving", got[0])
	}
	if got[1].PlayerID != wrID || got[1].Seasonal != 0 || got[1].Diff() != 0.5 {
		t.Errorf("missing seasonal row must compare against 0, got %+v", got[1])
	}
}

func TestCompareOrdersRushingBeforeReceiving(t *testing.T) {
	rows := []model.GameStat{weekly(rbID, 1, model.Float(2), model.Float(1))}
	adv := []model.AdvancedMetrics{{PlayerID: rbID, EPAMetrics: model.EPAMetrics{
		RushingEPA: model.Float(1.5), ReceivingEPA: model.Float(0.5)}}}

	got := Compare(2023, rows, adv)
	if len(got) != 2 || got[0].Role != "rushing" || got[1].Role != "receiving" {
		t.Errorf("got %+v, want rushing then receiving", got)
	}
}

func TestCheckerReadsStore(t *testing.T) {
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	if _, err := db.UpsertPlayers(ctx, []model.Player{{ExternalID: "x", Name: "X", Position: "RB"}}); err != nil {
		t.Fatalf("UpsertPlayers: %v", err)
	}
	ps, err := db.Players(ctx)
	if err != nil || len(ps) != 1 {
		t.Fatalf("Players: %v (%d rows)", err, len(ps))
	}
	id := ps[0].ID
	if _, err := db.ReplaceGameStats(ctx, 2022, []model.GameStat{weekly(id, 1, nil, nil)}); err != nil {
		t.Fatalf("ReplaceGameStats: %v", err)
	}
	if _, err := db.UpdateEfficiency(ctx, 2022, map[model.PlayerWeek]model.EPAMetrics{
		{PlayerID: id, Week: 1}: {RushingEPA: model.Float(3)},
	}); err != nil {
		t.Fatalf("UpdateEfficiency: %v", err)
	}
	if _, err := db.UpsertAdvancedMetrics(ctx, []model.AdvancedMetrics{{PlayerID: id, Season: 2022,
		EPAMetrics: model.EPAMetrics{RushingEPA: model.Float(2.5)}}}); err != nil {
		t.Fatalf("UpsertAdvancedMetrics: %v", err)
	}

	got, err := NewChecker(db, nil).Check(ctx, 2022)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(got) != 1 || got[0].Role != "rushing" {
		t.Errorf("expected one rushing mismatch, got %+v", got)
	}
}
