// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioevt

import (
	"sync"

	"github.com/pkg/errors"
)

// ChannelAllocator arbitrates the shared pool of event channels.
//
// The channel configuration registers themselves are the allocation record -
// a channel whose mode is ModeDisabled is free, and an active channel's owner
// field identifies the pin bound to it.  At most one channel is bound to a
// given pin at any time.
//
// Register state is shared between foreground code reconfiguring pins and the
// interrupt dispatch, and Go provides no atomic-register guarantee, so every
// operation on the pool runs under the allocator's mutex.
type ChannelAllocator struct {
	// Guards all reads and writes of the channel pool registers.
	mu sync.Mutex

	regs EventRegisters

	chans int
}

// NewChannelAllocator constructs an allocator managing the first numChannels
// channels of the pool.
func NewChannelAllocator(regs EventRegisters, numChannels int) (*ChannelAllocator, error) {
	if numChannels < 1 || numChannels > MaxChannels {
		return nil, errors.Errorf("gpioevt: channel pool size must be 1-%d, got %d", MaxChannels, numChannels)
	}
	return &ChannelAllocator{regs: regs, chans: numChannels}, nil
}

// Channels returns the size of the channel pool.
func (a *ChannelAllocator) Channels() int {
	return a.chans
}

// Allocate binds an event channel to the pin identified by owner, configures
// it with the given polarity and enables its interrupt.
//
// If the pin already owns a channel that channel is reused and its polarity
// rewritten, so repeated allocation cannot leak channels.  Otherwise the
// lowest-indexed free channel is claimed.  Returns ErrNoChannelAvailable if
// the pool is exhausted.
func (a *ChannelAllocator) Allocate(owner uint32, polarity Polarity) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, ok := a.find(owner)
	if !ok {
		ch, ok = a.firstFree()
		if !ok {
			return -1, ErrNoChannelAvailable
		}
	}
	a.regs.SetChannelConfig(ch, ChannelConfig{Mode: ModeEvent, Owner: owner, Polarity: polarity})
	a.regs.SetInterruptEnable(ch, true)
	return ch, nil
}

// Find returns the channel currently bound to the pin identified by owner.
//
// Returns ErrChannelNotFound if the pin owns no channel.
func (a *ChannelAllocator) Find(owner uint32) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, ok := a.find(owner)
	if !ok {
		return -1, ErrChannelNotFound
	}
	return ch, nil
}

// Release disables the channel and returns it to the pool.
//
// The channel's configuration, interrupt enable and any latched event are all
// cleared - a stale latch would fire for the channel's next owner.
// Releasing a free or out of range channel is a no-op.
func (a *ChannelAllocator) Release(ch int) {
	if ch < 0 || ch >= a.chans {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.release(ch)
}

// ReleaseOwner releases the channel bound to the pin identified by owner, if
// any, in a single critical section.
//
// Returns whether a channel was released.
func (a *ChannelAllocator) ReleaseOwner(owner uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, ok := a.find(owner)
	if ok {
		a.release(ch)
	}
	return ok
}

// OwnerPending returns whether the channel bound to the pin identified by
// owner has a latched event.
//
// Returns false if the pin owns no channel.
func (a *ChannelAllocator) OwnerPending(owner uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, ok := a.find(owner)
	return ok && a.regs.Pending(ch)
}

// find returns the channel bound to owner.
//
// A free channel never matches, even if its owner field still holds a stale
// value - matching on owner alone would make pin 0 ambiguous with a cleared
// slot.
//
// Call with mu held.
func (a *ChannelAllocator) find(owner uint32) (int, bool) {
	for ch := 0; ch < a.chans; ch++ {
		cfg := a.regs.ChannelConfig(ch)
		if cfg.Mode != ModeDisabled && cfg.Owner == owner {
			return ch, true
		}
	}
	return -1, false
}

// firstFree returns the lowest-indexed free channel.
//
// Call with mu held.
func (a *ChannelAllocator) firstFree() (int, bool) {
	for ch := 0; ch < a.chans; ch++ {
		if a.regs.ChannelConfig(ch).Mode == ModeDisabled {
			return ch, true
		}
	}
	return -1, false
}

// release clears the channel's configuration, interrupt enable and latched
// event.
//
// Call with mu held.
func (a *ChannelAllocator) release(ch int) {
	a.regs.SetInterruptEnable(ch, false)
	a.regs.SetChannelConfig(ch, ChannelConfig{})
	a.regs.ClearPending(ch)
}
