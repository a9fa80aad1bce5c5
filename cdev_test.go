// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package gpioevt_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpioevt"
	"github.com/warthog618/go-gpiosim"
)

// newSimChip creates a kernel gpio-sim chip to play the hardware side.
//
// Requires a kernel with gpio-sim and appropriate permissions, as per the
// go-gpiosim requirements, and skips the test otherwise.
func newSimChip(t *testing.T, numLines int) *gpiosim.Simpleton {
	t.Helper()
	s, err := gpiosim.NewSimpleton(numLines)
	if err != nil {
		t.Skipf("can't create gpio-sim chip: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestNewCdev(t *testing.T) {
	s := newSimChip(t, 8)

	c, err := gpioevt.NewCdev(s.DevPath(),
		gpioevt.WithLabel("gpioevt_test"),
		gpioevt.WithChannels(4),
	)
	require.Nil(t, err)
	defer c.Close()

	// bad pool size
	bc, err := gpioevt.NewCdev(s.DevPath(), gpioevt.WithChannels(0))
	assert.NotNil(t, err)
	assert.Nil(t, bc)

	// nonexistent chip
	bc, err = gpioevt.NewCdev("/dev/gpiochip_nonexistent")
	assert.NotNil(t, err)
	assert.Nil(t, bc)
}

func TestCdevPin(t *testing.T) {
	s := newSimChip(t, 8)

	c, err := gpioevt.NewCdev(s.DevPath(), gpioevt.WithChannels(4))
	require.Nil(t, err)
	defer c.Close()

	p, err := gpioevt.NewPort(c, c,
		gpioevt.WithLines(8),
		gpioevt.WithChannels(4),
	)
	require.Nil(t, err)

	// output drive is visible on the chip
	pin, err := p.Pin(3)
	require.Nil(t, err)
	pin.SetDirection(gpioevt.Output)
	pin.Write(true)
	checkSimLevel(t, s, 3, 1)
	assert.True(t, pin.Read())
	assert.False(t, pin.Toggle())
	checkSimLevel(t, s, 3, 0)

	// input level follows the chip pull
	pin, err = p.Pin(2)
	require.Nil(t, err)
	pin.SetDirection(gpioevt.Input)
	require.Nil(t, s.Pullup(2))
	assert.True(t, pin.Read())
	require.Nil(t, s.Pulldown(2))
	assert.False(t, pin.Read())

	// bias round trip
	pin.Pullup()
	assert.Equal(t, gpioevt.PullUp, pin.Pull())
	pin.Pulldown()
	assert.Equal(t, gpioevt.PullDown, pin.Pull())

	assert.Nil(t, c.Err())
}

func TestCdevIsPending(t *testing.T) {
	s := newSimChip(t, 8)

	// no notifier - events latch until serviced explicitly
	c, err := gpioevt.NewCdev(s.DevPath(), gpioevt.WithChannels(4))
	require.Nil(t, err)
	defer c.Close()

	p, err := gpioevt.NewPort(c, c,
		gpioevt.WithLines(8),
		gpioevt.WithChannels(4),
	)
	require.Nil(t, err)

	pin, err := p.Pin(5)
	require.Nil(t, err)
	fired := int32(0)
	pin.SetEventHandler(func() { atomic.AddInt32(&fired, 1) })
	require.Nil(t, pin.EnableInterrupts(gpioevt.EdgeRising))
	assert.False(t, pin.IsPending())

	require.Nil(t, s.Pullup(5))
	assert.Eventually(t, pin.IsPending, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))

	p.HandleInterrupt()
	assert.False(t, pin.IsPending())
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))

	assert.Nil(t, c.Err())
}

func TestCdevInterrupt(t *testing.T) {
	s := newSimChip(t, 8)

	c, err := gpioevt.NewCdev(s.DevPath(), gpioevt.WithChannels(4))
	require.Nil(t, err)
	defer c.Close()

	p, err := gpioevt.NewPort(c, c,
		gpioevt.WithLines(8),
		gpioevt.WithChannels(4),
	)
	require.Nil(t, err)
	c.SetInterruptNotifier(p.HandleInterrupt)

	pin, err := p.Pin(5)
	require.Nil(t, err)
	fired := int32(0)
	pin.SetEventHandler(func() { atomic.AddInt32(&fired, 1) })
	require.Nil(t, pin.EnableInterrupts(gpioevt.EdgeRising))

	count := func() int32 { return atomic.LoadInt32(&fired) }

	// rising edge dispatches the handler
	require.Nil(t, s.Pullup(5))
	assert.Eventually(t, func() bool { return count() == 1 }, time.Second, 10*time.Millisecond)

	// falling edge is filtered by the channel polarity
	require.Nil(t, s.Pulldown(5))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), count())

	// re-enabling with both edges reconfigures the existing channel
	require.Nil(t, pin.EnableInterrupts(gpioevt.EdgeBoth))
	require.Nil(t, s.Pullup(5))
	assert.Eventually(t, func() bool { return count() == 2 }, time.Second, 10*time.Millisecond)
	require.Nil(t, s.Pulldown(5))
	assert.Eventually(t, func() bool { return count() == 3 }, time.Second, 10*time.Millisecond)

	// disabling releases the channel and stops delivery
	pin.DisableInterrupts()
	require.Nil(t, s.Pullup(5))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(3), count())

	assert.Nil(t, c.Err())
}

func checkSimLevel(t *testing.T, s *gpiosim.Simpleton, offset, xv int) {
	t.Helper()
	v, err := s.Level(offset)
	assert.Nil(t, err)
	assert.Equal(t, xv, v)
}
