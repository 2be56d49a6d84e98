package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReceive(t *testing.T) {
	t.Parallel()

	ch := make(chan int, 1)
	ch <- 42
	assert.Equal(t, 42, Receive(t, ch, ShortTestTimeout, "value expected"))
}

func TestWaitClosed(t *testing.T) {
	t.Parallel()

	ch := make(chan string)
	close(ch)
	WaitClosed(t, ch, ShortTestTimeout, "channel should be closed")
}

func TestWaitForChannel(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	go close(done)
	WaitForChannel(t, done, ShortTestTimeout, "done not signalled")
}
