package jobs

import "errors"

// ErrNotFound is returned when a job does not exist or is not visible to
// the requesting user.
var ErrNotFound = errors.New("job not found")
