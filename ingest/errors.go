package ingest

import "errors"

// ErrQuotaExceeded is returned when the daily API quota no longer admits a
// call. It is raised before any request is attempted, always aborts the
// whole run rather than a single channel, and clears on the next quota
// reset.
var ErrQuotaExceeded = errors.New("daily API quota exceeded")
