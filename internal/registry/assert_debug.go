//go:build debug

package registry

import "fmt"

// invariant panics on a broken internal invariant.
// In debug builds this fails loudly.
func (r *Registry) invariant(ok bool, err error, format string, args ...any) {
	if !ok {
		panic(fmt.Errorf("%w: "+format, append([]any{err}, args...)...))
	}
}
