package model

import "time"

// UserUsage is the per-user token ledger. TokensUsed only grows until an
// administrative reset, which is outside this service.
type UserUsage struct {
	UserID      string
	TokensUsed  int64
	TokenLimit  int64
	LastResetAt time.Time
}

func NewUserUsage(userID string, limit int64) *UserUsage {
	return &UserUsage{
		UserID:      userID,
		TokensUsed:  0,
		TokenLimit:  limit,
		LastResetAt: time.Now(),
	}
}

// HasQuota reports whether any budget remains. The gate is binary: it does
// not pre-estimate the cost of the upcoming exchange.
func (u *UserUsage) HasQuota() bool {
	return u.TokensUsed < u.TokenLimit
}

func (u *UserUsage) Remaining() int64 {
	if r := u.TokenLimit - u.TokensUsed; r > 0 {
		return r
	}
	return 0
}
