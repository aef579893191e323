package model

import "time"

// Account is the usage state of a single chat user
type Account struct {
	UserID               string    `json:"user_id" yaml:"user_id"`
	Username             string    `json:"username" yaml:"username"`
	DailyRequests        int       `json:"daily_requests" yaml:"daily_requests"`
	DailyLimit           int       `json:"daily_limit" yaml:"daily_limit"`
	TotalRequests        int       `json:"total_requests" yaml:"total_requests"`
	Balance              int       `json:"balance" yaml:"balance"`       // Purchased or promo requests
	LastReset            time.Time `json:"last_reset" yaml:"last_reset"` // Date of the last daily reset (midnight, local time)
	FreeDeepResearchUsed bool      `json:"free_deep_research_used" yaml:"free_deep_research_used"`
}

// DailyRemaining returns how many free requests are left today
func (a Account) DailyRemaining() int {
	if a.DailyRequests >= a.DailyLimit {
		return 0
	}
	return a.DailyLimit - a.DailyRequests
}

// Package is a purchasable bundle of requests
type Package struct {
	ID       string `json:"id" yaml:"id" mapstructure:"id"` // Button action, e.g. "buy_10"
	Requests int    `json:"requests" yaml:"requests" mapstructure:"requests"`
	Price    int    `json:"price" yaml:"price" mapstructure:"price"` // Whole currency units
}
