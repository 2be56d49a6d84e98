package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return t0.Add(time.Duration(seconds * float64(time.Second)))
}

func TestGateSuppressesRepeatWithinCooldown(t *testing.T) {
	t.Parallel()

	g := NewDeduplicationGate(DefaultCooldown)

	assert.True(t, g.Admit("A", at(0)))
	assert.False(t, g.Admit("A", at(0.5)))
	assert.False(t, g.Admit("A", at(1.9)))
	assert.True(t, g.Admit("A", at(2.0)), "cooldown boundary is exclusive")
}

func TestGateRejectionDoesNotExtendWindow(t *testing.T) {
	t.Parallel()

	g := NewDeduplicationGate(DefaultCooldown)

	assert.True(t, g.Admit("A", at(0)))
	assert.False(t, g.Admit("A", at(1.5)))
	assert.True(t, g.Admit("A", at(2.1)))
}

func TestGateRemembersSingleValue(t *testing.T) {
	t.Parallel()

	g := NewDeduplicationGate(DefaultCooldown)

	assert.True(t, g.Admit("A", at(0)))
	assert.True(t, g.Admit("B", at(0.1)))
	assert.True(t, g.Admit("A", at(0.2)), "A is no longer the last value")
	assert.False(t, g.Admit("A", at(0.3)))
}

func TestGateReset(t *testing.T) {
	t.Parallel()

	g := NewDeduplicationGate(DefaultCooldown)

	assert.True(t, g.Admit("A", at(0)))
	g.Reset()
	assert.True(t, g.Admit("A", at(0.1)))
}

func TestGateZeroCooldownAdmitsEverything(t *testing.T) {
	t.Parallel()

	g := NewDeduplicationGate(-time.Second)
	assert.Equal(t, time.Duration(0), g.Cooldown())

	assert.True(t, g.Admit("A", at(0)))
	assert.True(t, g.Admit("A", at(0)))
}
