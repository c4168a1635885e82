package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AfterFiresOnAdvance(t *testing.T) {
	c := NewFake(start)
	ch := c.After(time.Second)
	assert.Equal(t, 1, c.Pending())

	c.Advance(500 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	c.Advance(500 * time.Millisecond)
	select {
	case got := <-ch:
		assert.Equal(t, start.Add(time.Second), got)
	default:
		t.Fatal("did not fire")
	}
	assert.Zero(t, c.Pending())
	assert.Equal(t, start.Add(time.Second), c.Now())
}

func TestFake_AfterNonPositive(t *testing.T) {
	c := NewFake(start)
	select {
	case <-c.After(0):
	default:
		t.Fatal("zero duration should fire immediately")
	}
}

func TestFake_AfterFunc(t *testing.T) {
	c := NewFake(start)
	done := make(chan struct{})
	c.AfterFunc(time.Minute, func() { close(done) })

	c.Advance(time.Minute)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not run")
	}
}

func TestFake_AfterFuncStop(t *testing.T) {
	c := NewFake(start)
	var ran atomic.Bool
	timer := c.AfterFunc(time.Minute, func() { ran.Store(true) })

	require.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(time.Hour)
	assert.Zero(t, c.Pending())
	assert.False(t, ran.Load())
}

func TestFake_WaitForTimers(t *testing.T) {
	c := NewFake(start)
	fired := make(chan time.Time, 1)
	go func() { fired <- <-c.After(time.Second) }()

	c.WaitForTimers(1)
	c.Advance(time.Second)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("waiter did not fire")
	}
}

func TestReal_Now(t *testing.T) {
	before := time.Now()
	assert.False(t, Real().Now().Before(before))
}
