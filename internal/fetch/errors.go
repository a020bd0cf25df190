package fetch

import "errors"

var (
	ErrNotFound    = errors.New("no chain data for this ticker")
	ErrRateLimited = errors.New("rate limited by quote server")
)
