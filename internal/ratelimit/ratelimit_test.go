package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowRespectsBurst(t *testing.T) {
	l := New(1, 2, time.Minute)

	assert.True(t, l.Allow("client-a"))
	assert.True(t, l.Allow("client-a"))
	assert.False(t, l.Allow("client-a"))
}

func TestAllowTracksClientsIndependently(t *testing.T) {
	l := New(1, 1, time.Minute)

	assert.True(t, l.Allow("client-a"))
	assert.True(t, l.Allow("client-b"))
	assert.False(t, l.Allow("client-a"))
}

func TestSweepRemovesIdleClients(t *testing.T) {
	l := New(1, 1, time.Millisecond)
	l.Allow("client-a")
	assert.Equal(t, 1, l.Clients())

	time.Sleep(5 * time.Millisecond)
	removed := l.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, l.Clients())
}

func TestAllowOnNilLimiterFailsOpen(t *testing.T) {
	var l *Limiter
	assert.True(t, l.Allow("anyone"))
}
