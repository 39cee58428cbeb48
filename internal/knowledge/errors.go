package knowledge

import "errors"

// ErrNotFound is returned when an entry does not exist or is not visible
// to the requesting user.
var ErrNotFound = errors.New("knowledge entry not found")
