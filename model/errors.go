package model

import "errors"

var (
	// ErrInvalidParameter rejects a malformed control update. State is
	// left unchanged.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrPoolExhausted means every voice is sustained and no eviction
	// candidate exists. The requested note is dropped, not retried.
	ErrPoolExhausted = errors.New("voice pool exhausted")

	// ErrRankBypassed marks a rank with zero density. It contributes no
	// weight and consumes no voices this cycle.
	ErrRankBypassed = errors.New("rank bypassed")
)
