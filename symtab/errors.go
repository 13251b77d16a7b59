package symtab

import (
	"errors"
	"fmt"
)

// ErrNotFound is the normal miss outcome of a lookup. It is never
// logged as an error.
var ErrNotFound = errors.New("symbol not found")

// ErrNoSearchDomain rejects a search request without a concrete domain
// kind before any scan begins.
var ErrNoSearchDomain = errors.New("must search on a specific domain kind")

// InconsistencyError reports that a partial unit promised a symbol its
// expanded full unit does not contain. This signals a reader defect
// (often an inlined function or an uninstantiated template whose
// partial summary overstated availability) and is surfaced to the
// caller rather than swallowed.
type InconsistencyError struct {
	Scope    string // "global" or "static"
	Name     string
	Filename string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("internal: %s symbol %q found in partial unit for %s but not in its full unit; "+
		"%s may be an inlined function or an uninstantiated template", e.Scope, e.Name, e.Filename, e.Name)
}
