package quota

import "errors"

// ErrLimitReached indicates the user exceeded their document or byte ceiling.
var ErrLimitReached = errors.New("quota exceeded")
