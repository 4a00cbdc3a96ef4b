package window

import (
	"testing"
	"time"

	"github.com/complif/rules-engine/internal/app/domain"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return ts
}

func TestComputeBoundsEndEqualsAnchor(t *testing.T) {
	anchor := mustParse(t, "2026-02-13T12:00:00Z")
	bounds, err := ComputeBounds(anchor, domain.WindowSpec{Duration: 24, Unit: "hours"})
	if err != nil {
		t.Fatalf("compute bounds: %v", err)
	}
	if !bounds.End.Equal(anchor) {
		t.Fatalf("expected end == anchor, got %v", bounds.End)
	}
	want := anchor.Add(-24 * time.Hour)
	if !bounds.Start.Equal(want) {
		t.Fatalf("expected start %v, got %v", want, bounds.Start)
	}
}

func TestComputeBoundsRejectsUnknownUnit(t *testing.T) {
	_, err := ComputeBounds(time.Now(), domain.WindowSpec{Duration: 1, Unit: "fortnights"})
	if err == nil {
		t.Fatal("expected error for unknown unit")
	}
}

func TestComputeBoundsPureFunctionOfInputs(t *testing.T) {
	anchor := mustParse(t, "2026-02-13T12:00:00Z")
	spec := domain.WindowSpec{Duration: 7, Unit: "days"}
	a, _ := ComputeBounds(anchor, spec)
	b, _ := ComputeBounds(anchor, spec)
	if a != b {
		t.Fatal("expected ComputeBounds to be a pure function of (anchor, window)")
	}
}

func TestInWindowExcludesAnchorItself(t *testing.T) {
	anchor := mustParse(t, "2026-02-13T12:00:00Z")
	bounds, _ := ComputeBounds(anchor, domain.WindowSpec{Duration: 1, Unit: "hours"})
	if InWindow(anchor, bounds) {
		t.Fatal("anchor must not be counted in its own window (exclusive end)")
	}
	if !InWindow(bounds.Start, bounds) {
		t.Fatal("window start must be inclusive")
	}
}

func TestFilterInWindow(t *testing.T) {
	anchor := mustParse(t, "2026-02-13T12:00:00Z")
	txs := []domain.Transaction{
		{ID: "in-bounds", DateTime: anchor.Add(-1 * time.Hour)},
		{ID: "too-old", DateTime: anchor.Add(-25 * time.Hour)},
		{ID: "self", DateTime: anchor},
	}
	filtered, err := FilterInWindow(txs, anchor, domain.WindowSpec{Duration: 24, Unit: "hours"})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "in-bounds" {
		t.Fatalf("expected only in-bounds transaction, got %+v", filtered)
	}
}

func TestQuantizeDedupBucketDefaultsToCalendarDay(t *testing.T) {
	a := mustParse(t, "2026-02-13T01:00:00Z")
	b := mustParse(t, "2026-02-13T23:59:59Z")
	bucketA, err := QuantizeDedupBucket(a, nil)
	if err != nil {
		t.Fatalf("quantize: %v", err)
	}
	bucketB, err := QuantizeDedupBucket(b, nil)
	if err != nil {
		t.Fatalf("quantize: %v", err)
	}
	if bucketA != bucketB {
		t.Fatalf("expected same calendar-day bucket, got %s and %s", bucketA, bucketB)
	}
	if bucketA != "2026-02-13T00:00:00.000Z" {
		t.Fatalf("expected midnight boundary, got %s", bucketA)
	}
}

func TestQuantizeDedupBucketWithWindow(t *testing.T) {
	w := domain.WindowSpec{Duration: 1, Unit: "hours"}
	first := mustParse(t, "2026-02-13T11:10:00Z")
	second := mustParse(t, "2026-02-13T11:50:00Z")
	bucket1, _ := QuantizeDedupBucket(first, &w)
	bucket2, _ := QuantizeDedupBucket(second, &w)
	if bucket1 != bucket2 {
		t.Fatalf("expected same 1h bucket, got %s and %s", bucket1, bucket2)
	}
}

func TestAggregateEmptySet(t *testing.T) {
	agg := Aggregate(nil)
	if agg.Count != 0 || agg.Sum != 0 {
		t.Fatalf("expected count/sum 0 on empty set, got %+v", agg)
	}
	if agg.Avg != nil || agg.Max != nil || agg.Min != nil {
		t.Fatal("expected avg/max/min nil on empty set")
	}
}

func TestAggregateNonEmptySet(t *testing.T) {
	txs := []domain.Transaction{
		{Type: "CASH_OUT", Amount: 100},
		{Type: "CASH_OUT", Amount: 300},
		{Type: "DEBIT", Amount: 200},
	}
	agg := Aggregate(txs)
	if agg.Count != 3 {
		t.Fatalf("expected count 3, got %d", agg.Count)
	}
	if agg.Sum != 600 {
		t.Fatalf("expected sum 600, got %v", agg.Sum)
	}
	if *agg.Avg != 200 {
		t.Fatalf("expected avg 200, got %v", *agg.Avg)
	}
	if *agg.Max != 300 || *agg.Min != 100 {
		t.Fatalf("expected max 300 min 100, got max=%v min=%v", *agg.Max, *agg.Min)
	}
	if agg.CountByType["CASH_OUT"] != 2 || agg.CountByType["DEBIT"] != 1 {
		t.Fatalf("unexpected count by type: %+v", agg.CountByType)
	}
}
