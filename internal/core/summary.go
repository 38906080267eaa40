package core

import "time"

// CategorySpending is an amount aggregated under one category bucket.
// Percent is a derived display value, filled in by the aggregation engine.
type CategorySpending struct {
	Category string
	Total    Money
	Percent  int
}

// PeriodTotal is the spending total for one time bucket, identified by the
// bucket's start instant.
type PeriodTotal struct {
	Start time.Time
	Total Money
}

// ForecastResult carries the projected spending for the next N periods,
// plus the optional natural-language tip. Tip is empty when the
// text-generation collaborator failed or was not asked.
type ForecastResult struct {
	Values         []Money
	PeriodsCovered int
	Category       string
	LowConfidence  bool
	Tip            string
}
