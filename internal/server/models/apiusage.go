package models

import "time"

// APIUsage is one usage-log row per proxied AI call, success or failure.
type APIUsage struct {
	ID        string
	UserID    string
	Provider  string
	Model     string
	Endpoint  string
	Tokens    int
	Cost      float64
	Duration  time.Duration
	Success   bool
	Error     string
	CreatedAt time.Time
}

// UsageTotals rolls the ledger up over a period.
type UsageTotals struct {
	Requests int
	Tokens   int
	Cost     float64
}

// UsageGroup is the per-provider/endpoint rollup.
type UsageGroup struct {
	Provider string
	Endpoint string
	Requests int
	Tokens   int
	Cost     float64
}

// UsageDay is one day of the daily breakdown.
type UsageDay struct {
	Date     time.Time
	Requests int
	Tokens   int
}
