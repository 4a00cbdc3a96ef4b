// Package behavior implements the Behavioral Baseline Service (spec §4.8):
// a 30-day lookback profile per account and the anchor transaction's
// deviation from it.
package behavior

import (
	"context"
	"math"

	"github.com/complif/rules-engine/internal/app/domain"
	"github.com/complif/rules-engine/internal/app/storage"
	"github.com/complif/rules-engine/internal/app/window"
)

// LookbackDays is the fixed behavioral lookback window.
const LookbackDays = window.DefaultLookbackDays

// Service computes behavioral facts over transaction history.
type Service struct {
	txs storage.TransactionStore
}

// New builds a Service over a transaction store.
func New(txs storage.TransactionStore) *Service {
	return &Service{txs: txs}
}

// ComputeBehavioralFacts implements spec §4.8 for a single anchor
// transaction, excluding it from its own history.
func (s *Service) ComputeBehavioralFacts(ctx context.Context, org string, tx domain.Transaction) (domain.BehavioralFacts, error) {
	lookbackStart := tx.DateTime.AddDate(0, 0, -LookbackDays)
	hist, err := s.txs.BehavioralHistory(ctx, org, tx.AccountID, lookbackStart, tx.DateTime, tx.ID)
	if err != nil {
		return domain.BehavioralFacts{}, err
	}

	baseline := domain.Baseline{
		HistoryCount:     hist.Count,
		AvgAmount:        hist.AvgAmount,
		StdAmount:        hist.StdDevAmount,
		TypicalCountries: hist.DistinctCountries,
		TypicalChannels:  hist.DistinctChannels,
		IsColdStart:      hist.Count < window.ColdStartThreshold,
	}
	if hist.Count > 0 {
		freq := round4(float64(hist.Count) / float64(LookbackDays))
		baseline.AvgFrequencyPerDay = &freq
	}

	deviation := domain.Deviation{IsColdStart: baseline.IsColdStart}
	if baseline.AvgAmount != nil && *baseline.AvgAmount > 0 {
		ratio := tx.Amount / *baseline.AvgAmount
		deviation.AmountRatio = &ratio
	}
	if baseline.StdAmount != nil && *baseline.StdAmount > 0 {
		z := (tx.Amount - *baseline.AvgAmount) / *baseline.StdAmount
		deviation.AmountZScore = &z
	}
	if len(baseline.TypicalCountries) > 0 && tx.Country != nil {
		deviation.IsNewCountry = !containsString(baseline.TypicalCountries, *tx.Country)
	}
	if len(baseline.TypicalChannels) > 0 && tx.Channel != nil {
		deviation.IsNewChannel = !containsString(baseline.TypicalChannels, *tx.Channel)
	}

	return domain.BehavioralFacts{Baseline: baseline, Deviation: deviation}, nil
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
