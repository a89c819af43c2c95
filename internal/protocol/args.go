package protocol

import (
	"fmt"
	"math"

	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
)

// argReader reads positional OSC arguments, remembering the first failure.
type argReader struct {
	address string
	args    []any
	err     error
}

func (r *argReader) fail(i int, format string, a ...any) {
	if r.err == nil {
		r.err = &MalformedError{Address: r.address, Index: i, Got: len(r.args), Reason: fmt.Sprintf(format, a...)}
	}
}

// float reads a numeric argument. OSC senders mix int32 and float32 for the same field.
func (r *argReader) float(i int) float64 {
	if i >= len(r.args) {
		r.fail(i, "missing")
		return 0
	}
	switch v := r.args[i].(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		r.fail(i, "expected number, got %T", v)
		return 0
	}
}

// int reads an integer argument. Floats are accepted when integral.
func (r *argReader) int(i int) int {
	if i >= len(r.args) {
		r.fail(i, "missing")
		return 0
	}
	switch v := r.args[i].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case float32:
		return r.integral(i, float64(v))
	case float64:
		return r.integral(i, v)
	default:
		r.fail(i, "expected integer, got %T", v)
		return 0
	}
}

func (r *argReader) integral(i int, f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		r.fail(i, "%v is not an integer", f)
		return 0
	}
	return int(f)
}

func (r *argReader) vec2(i int) core.Vector2 {
	return core.Vector2{X: r.float(i), Y: r.float(i + 1)}
}
