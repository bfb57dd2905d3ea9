package usage

import "errors"

var (
	ErrUsageNotFound   = errors.New("usage record not found")
	ErrQuotaExhausted  = errors.New("monthly search quota exhausted")
	ErrInvalidPeriod   = errors.New("period end must be after period start")
	ErrNegativeCounter = errors.New("usage counter cannot be negative")
)
