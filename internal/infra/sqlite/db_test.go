package sqlite

import (
	"testing"
	"time"

	"github.com/magneticstudio/catalogd/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAppendAndListRuns(t *testing.T) {
	db := newTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)
	rec := domain.RunRecord{
		ID:             "run-1",
		StartedAt:      now,
		FinishedAt:     now.Add(3 * time.Second),
		DryRun:         false,
		ItemsTotal:     2,
		Created:        1,
		PricesCreated:  1,
		ImagesAttached: 1,
		Failed:         1,
	}
	items := []domain.ItemResult{
		{Name: "Starter Reading", ProductID: "prod_1", PriceID: "price_1", Attached: true},
		{Name: "Broken Item", Err: "commerce post /v1/products: status 500"},
	}

	if err := db.AppendRun(rec, items); err != nil {
		t.Fatalf("AppendRun() error: %v", err)
	}

	runs, err := db.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns() error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len = %d, want 1", len(runs))
	}
	got := runs[0]
	if got.ID != "run-1" || got.Created != 1 || got.Failed != 1 || got.DryRun {
		t.Errorf("got %+v", got)
	}
	if !got.StartedAt.Equal(now) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, now)
	}
}

func TestRecentRunsOrdering(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		rec := domain.RunRecord{
			ID:         id,
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Minute),
			DryRun:     true,
		}
		if err := db.AppendRun(rec, nil); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := db.RecentRuns(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Errorf("got %v, want newest first with limit", runs)
	}
}

func TestRunItems(t *testing.T) {
	db := newTestDB(t)
	rec := domain.RunRecord{ID: "run-9", StartedAt: time.Now(), FinishedAt: time.Now()}
	items := []domain.ItemResult{
		{Name: "B", ProductID: "prod_b"},
		{Name: "A", ProductID: "prod_a", Attached: true},
	}
	if err := db.AppendRun(rec, items); err != nil {
		t.Fatal(err)
	}

	got, err := db.RunItems("run-9")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "A" || !got[0].Attached {
		t.Errorf("got %+v", got)
	}

	empty, err := db.RunItems("missing")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no items for unknown run, got %v", empty)
	}
}
