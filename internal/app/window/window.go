// Package window computes deterministic sliding-window bounds and dedup
// bucket boundaries anchored to a transaction's datetime. Nothing here
// consults wall-clock time; every function is a pure function of its
// arguments.
package window

import (
	"fmt"
	"time"

	"github.com/complif/rules-engine/internal/app/domain"
)

// DefaultLookbackDays is the behavioral baseline's default lookback.
const DefaultLookbackDays = 30

// ColdStartThreshold is the minimum historical transaction count below
// which an account is considered a cold start.
const ColdStartThreshold = 5

// MaxInheritanceDepth bounds the rule-template parent chain walk.
const MaxInheritanceDepth = 10

// Bounds is a half-open interval [Start, End) anchored to a transaction's
// datetime, with End always equal to the anchor.
type Bounds struct {
	Start time.Time
	End   time.Time
}

// ComputeBounds returns the [start, end) bounds for w anchored at t: end is
// always the anchor; start is the anchor minus the window's duration in its
// unit. Returns an error for an unrecognized unit so callers can reject a
// malformed WindowSpec before using it, rather than silently misevaluating.
func ComputeBounds(anchor time.Time, w domain.WindowSpec) (Bounds, error) {
	d, err := Duration(w)
	if err != nil {
		return Bounds{}, err
	}
	return Bounds{Start: anchor.Add(-d), End: anchor}, nil
}

// Duration converts a WindowSpec into a time.Duration.
func Duration(w domain.WindowSpec) (time.Duration, error) {
	switch w.Unit {
	case "minutes":
		return time.Duration(w.Duration) * time.Minute, nil
	case "hours":
		return time.Duration(w.Duration) * time.Hour, nil
	case "days":
		return time.Duration(w.Duration) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("window: unknown unit %q", w.Unit)
	}
}

// Suffix renders a WindowSpec's fact-bundle key suffix, e.g. {24, "hours"}
// -> "24hours".
func Suffix(w domain.WindowSpec) string {
	return fmt.Sprintf("%d%s", w.Duration, w.Unit)
}

// InWindow reports whether t falls within [b.Start, b.End): inclusive
// start, exclusive end, so the anchor transaction never self-includes.
func InWindow(t time.Time, b Bounds) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

// FilterInWindow keeps the transactions whose DateTime falls in
// [start, end) around anchor, per InWindow. The anchor's own ID must be
// excluded by the caller (typically via the `id != current` predicate
// pushed into the backing query); this pure helper only applies the time
// bound.
func FilterInWindow(txs []domain.Transaction, anchor time.Time, w domain.WindowSpec) ([]domain.Transaction, error) {
	bounds, err := ComputeBounds(anchor, w)
	if err != nil {
		return nil, err
	}
	var out []domain.Transaction
	for _, tx := range txs {
		if InWindow(tx.DateTime, bounds) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// QuantizeDedupBucket maps t to the ISO-8601 UTC boundary of the dedup
// bucket it falls in. When w is nil, the bucket is the UTC calendar day
// (the default evaluation window for dedup when a rule has no window).
func QuantizeDedupBucket(t time.Time, w *domain.WindowSpec) (string, error) {
	t = t.UTC()
	var bucketMillis int64
	if w == nil {
		bucketMillis = int64(24 * time.Hour / time.Millisecond)
	} else {
		d, err := Duration(*w)
		if err != nil {
			return "", err
		}
		bucketMillis = int64(d / time.Millisecond)
	}
	if bucketMillis <= 0 {
		return "", fmt.Errorf("window: non-positive bucket duration")
	}
	tMillis := t.UnixMilli()
	boundaryMillis := floorDiv(tMillis, bucketMillis) * bucketMillis
	boundary := time.UnixMilli(boundaryMillis).UTC()
	return boundary.Format("2006-01-02T15:04:05.000Z"), nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Aggregate summarizes txs by amount: COUNT on empty is 0, SUM on empty is
// 0, AVG/MAX/MIN on empty are nil (not zero) so the fact bundle can
// distinguish "no history" from "history averaging zero".
func Aggregate(txs []domain.Transaction) domain.WindowAggregation {
	agg := domain.WindowAggregation{CountByType: map[string]int64{}}
	if len(txs) == 0 {
		return agg
	}
	var sum, max, min float64
	for i, tx := range txs {
		agg.Count++
		sum += tx.Amount
		agg.CountByType[tx.Type]++
		if i == 0 || tx.Amount > max {
			max = tx.Amount
		}
		if i == 0 || tx.Amount < min {
			min = tx.Amount
		}
	}
	agg.Sum = sum
	avg := sum / float64(len(txs))
	agg.Avg = &avg
	agg.Max = &max
	agg.Min = &min
	return agg
}
