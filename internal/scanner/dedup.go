package scanner

import "time"

// DefaultCooldown is the window in which a repeat of the last admitted value is suppressed.
const DefaultCooldown = 2 * time.Second

// DeduplicationGate suppresses rapid repeats of the most recently admitted value.
// It remembers a single value only: after A then B, A is admitted again at once.
//
// A gate is not safe for concurrent use; the owning session serializes calls.
type DeduplicationGate struct {
	cooldown  time.Duration
	lastValue string
	lastAt    time.Time
	hasLast   bool
}

// NewDeduplicationGate creates a gate. A negative cooldown is treated as zero.
func NewDeduplicationGate(cooldown time.Duration) *DeduplicationGate {
	return &DeduplicationGate{cooldown: max(cooldown, 0)}
}

// Cooldown returns the configured suppression window.
func (g *DeduplicationGate) Cooldown() time.Duration {
	return g.cooldown
}

// Admit reports whether value should be processed. A rejection leaves the
// state untouched, so the window is measured from the last admission and a
// value held in view is re-admitted once per cooldown.
func (g *DeduplicationGate) Admit(value string, now time.Time) bool {
	if g.hasLast && value == g.lastValue && now.Sub(g.lastAt) < g.cooldown {
		return false
	}

	g.lastValue = value
	g.lastAt = now
	g.hasLast = true
	return true
}

// Reset forgets the last admitted value.
func (g *DeduplicationGate) Reset() {
	g.lastValue = ""
	g.lastAt = time.Time{}
	g.hasLast = false
}
