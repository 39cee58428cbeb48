package usage

import "errors"

// ErrLimitReached indicates the user has no processing runs left in
// the current period.
var ErrLimitReached = errors.New("limit reached")
