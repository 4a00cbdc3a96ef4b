package domain

// FactBundle is the nested object the pure engine evaluates conditions
// against. Condition leaves reference facts via dot-notation paths into
// this structure (e.g. "transaction.amount", "aggregation.count_24hours").
// It is represented as a generic nested map so the evaluator's path walker
// stays agnostic of which concrete Go types produced it.
type FactBundle map[string]any

// WindowAggregation is one window's worth of aggregation facts, computed
// once per unique WindowSpec among the active rule set and exposed under
// keys like count_24hours, sum_amount_24hours, avg_amount_24hours,
// max_amount_24hours, min_amount_24hours, count_by_type_24hours.
type WindowAggregation struct {
	Suffix      string         // e.g. "24hours", derived from the WindowSpec
	Count       int64          `json:"count"`
	Sum         float64        `json:"sum"`
	Avg         *float64       `json:"avg,omitempty"`
	Max         *float64       `json:"max,omitempty"`
	Min         *float64       `json:"min,omitempty"`
	CountByType map[string]int64 `json:"countByType"`
}

// BuildFactBundle assembles the exact fact-bundle shape the engine expects
// from the typed pieces the orchestrator gathers concurrently.
func BuildFactBundle(tx Transaction, aggregations map[string]WindowAggregation, lists ListFacts, behavior BehavioralFacts) FactBundle {
	transaction := map[string]any{
		"amount":         tx.Amount,
		"type":           tx.Type,
		"currency":       tx.Currency,
		"datetime":       tx.DateTime.Format("2006-01-02T15:04:05.000Z07:00"),
		"idAccount":      tx.AccountID,
		"isVoided":       false,
		"isBlocked":      false,
	}
	if tx.AmountNormalized != nil {
		transaction["amountNormalized"] = *tx.AmountNormalized
	}
	if tx.Subtype != nil {
		transaction["subType"] = *tx.Subtype
	}
	if tx.Country != nil {
		transaction["country"] = *tx.Country
	}
	if tx.CounterpartyID != nil {
		transaction["counterpartyId"] = *tx.CounterpartyID
	}
	if tx.Channel != nil {
		transaction["channel"] = *tx.Channel
	}
	if tx.Quantity != nil {
		transaction["quantity"] = *tx.Quantity
	}
	if tx.Asset != nil {
		transaction["asset"] = *tx.Asset
	}
	if tx.Price != nil {
		transaction["price"] = *tx.Price
	}
	if tx.Origin != nil {
		transaction["origin"] = *tx.Origin
	}
	if tx.Data != nil {
		transaction["data"] = tx.Data
	}
	if tx.Metadata != nil {
		transaction["deviceInfo"] = tx.Metadata
	}

	aggregation := map[string]any{}
	for _, agg := range aggregations {
		aggregation["count_"+agg.Suffix] = agg.Count
		aggregation["sum_amount_"+agg.Suffix] = agg.Sum
		aggregation["avg_amount_"+agg.Suffix] = nullableFloat(agg.Avg)
		aggregation["max_amount_"+agg.Suffix] = nullableFloat(agg.Max)
		aggregation["min_amount_"+agg.Suffix] = nullableFloat(agg.Min)
		aggregation["count_by_type_"+agg.Suffix] = agg.CountByType
	}

	listsMap := map[string]any{
		"isBlacklisted": lists.IsBlacklisted,
		"isWhitelisted": lists.IsWhitelisted,
		"blacklists":    toAnyMap(lists.Blacklists),
		"whitelists":    toAnyMap(lists.Whitelists),
	}

	return FactBundle{
		"transaction": transaction,
		"aggregation": aggregation,
		"lists":       listsMap,
		"behavior":    baselineToMap(behavior.Baseline),
		"deviation":   deviationToMap(behavior.Deviation),
	}
}

func baselineToMap(b Baseline) map[string]any {
	m := map[string]any{
		"historyCount":     b.HistoryCount,
		"typicalCountries": toAnySlice(b.TypicalCountries),
		"typicalChannels":  toAnySlice(b.TypicalChannels),
		"isColdStart":      b.IsColdStart,
		"avgAmount":        nullableFloat(b.AvgAmount),
		"stdAmount":        nullableFloat(b.StdAmount),
		"avgFrequencyPerDay": nullableFloat(b.AvgFrequencyPerDay),
	}
	return m
}

func deviationToMap(d Deviation) map[string]any {
	return map[string]any{
		"amountRatio":  nullableFloat(d.AmountRatio),
		"amountZScore": nullableFloat(d.AmountZScore),
		"isNewCountry": d.IsNewCountry,
		"isNewChannel": d.IsNewChannel,
		"isColdStart":  d.IsColdStart,
	}
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func toAnyMap(m map[string]bool) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
