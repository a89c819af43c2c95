//go:build !debug

package registry

import "fmt"

// invariant logs a broken internal invariant and lets the caller repair it.
// In release builds the registry keeps running.
func (r *Registry) invariant(ok bool, err error, format string, args ...any) {
	if !ok {
		r.logger.Error("registry invariant violated", "error", fmt.Errorf("%w: "+format, append([]any{err}, args...)...))
	}
}
