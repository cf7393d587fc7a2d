package models

// DailyStats holds an aggregated per-day count for dashboard charts
type DailyStats struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
