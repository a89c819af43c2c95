package registry

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects which live objects are exposed to subscribers.
type Mode uint8

const (
	ModeAll Mode = iota
	ModeOldest
	ModeNewest
)

func (m Mode) String() string {
	switch m {
	case ModeAll:
		return "all"
	case ModeOldest:
		return "oldest"
	case ModeNewest:
		return "newest"
	default:
		return "unknown"
	}
}

// ErrUnknownPolicy is returned by ParseMode for unsupported names.
var ErrUnknownPolicy = errors.New("unknown selection policy")

// ParseMode accepts "all", "oldest" or "newest", case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "":
		return ModeAll, nil
	case "oldest":
		return ModeOldest, nil
	case "newest":
		return ModeNewest, nil
	}
	return ModeAll, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// Policy is a selection window over the live objects ordered by entry.
type Policy struct {
	Mode  Mode
	Count int
}

func All() Policy         { return Policy{Mode: ModeAll} }
func Oldest(n int) Policy { return Policy{Mode: ModeOldest, Count: n} }
func Newest(n int) Policy { return Policy{Mode: ModeNewest, Count: n} }

func (p Policy) String() string {
	if p.Mode == ModeAll {
		return "all"
	}
	return fmt.Sprintf("%s(%d)", p.Mode, p.Count)
}

// Desired reports whether the object at rank is inside the window.
// Oldest clamps its count to [0, live]. Newest counts back from the
// scene-reported object count, which can differ from live after local timeouts.
func (p Policy) Desired(rank, live, sceneCount int) bool {
	switch p.Mode {
	case ModeOldest:
		return rank < min(max(p.Count, 0), live)
	case ModeNewest:
		return rank >= sceneCount-p.Count
	default:
		return true
	}
}
