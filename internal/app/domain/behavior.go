package domain

// Baseline is an account's historical profile over the behavioral lookback
// window (30 days by default), excluding the anchor transaction itself.
type Baseline struct {
	HistoryCount       int      `json:"historyCount"`
	AvgAmount          *float64 `json:"avgAmount,omitempty"`
	StdAmount          *float64 `json:"stdAmount,omitempty"`
	TypicalCountries   []string `json:"typicalCountries"`
	TypicalChannels    []string `json:"typicalChannels"`
	AvgFrequencyPerDay *float64 `json:"avgFrequencyPerDay,omitempty"`
	IsColdStart        bool     `json:"isColdStart"`
}

// Deviation is how the anchor transaction deviates from its account's
// Baseline.
type Deviation struct {
	AmountRatio   *float64 `json:"amountRatio,omitempty"`
	AmountZScore  *float64 `json:"amountZScore,omitempty"`
	IsNewCountry  bool     `json:"isNewCountry"`
	IsNewChannel  bool     `json:"isNewChannel"`
	IsColdStart   bool     `json:"isColdStart"`
}

// BehavioralFacts bundles Baseline and Deviation for the fact builder.
type BehavioralFacts struct {
	Baseline  Baseline  `json:"baseline"`
	Deviation Deviation `json:"deviation"`
}
