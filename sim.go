// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioevt

import (
	"sync"

	"github.com/pkg/errors"
)

// Sim is an in-memory simulation of the pin and event channel hardware, for
// testing users of this package without real silicon.
//
// The Sim implements both PinRegisters and EventRegisters, so it can be
// passed directly to NewPort.  The remaining methods play the role of the
// outside world: applying a pull to an input line sets its level, and level
// transitions latch events on matching channels exactly as the hardware
// would, including calling the interrupt notifier to model the shared
// interrupt line firing.
type Sim struct {
	// The name of the sim, for diagnostics.
	label string

	// Guards lines and chans.
	mu sync.Mutex

	// The simulated pins.
	lines []simLine

	// The simulated event channel pool.
	chans []simChannel

	// Called when an event is latched on a channel with its interrupt
	// enabled.
	notify func()
}

// simLine is the electrical state of one simulated pin.
type simLine struct {
	level bool
	pull  Pull
	dir   Direction
}

// simChannel is the state of one simulated event channel.
type simChannel struct {
	cfg     ChannelConfig
	pending bool
	inten   bool
}

// NewSim constructs a Sim based on the provided options.
//
// The available options are [WithLabel], [WithLines], [WithChannels] and
// [WithInterruptNotifier].
func NewSim(options ...SimOption) (*Sim, error) {
	b := simBuilder{
		lines:    32,
		channels: MaxChannels,
	}
	for _, o := range options {
		o.applySimOption(&b)
	}
	if b.lines < 1 || b.lines > MaxLines {
		return nil, errors.Errorf("gpioevt: line count must be 1-%d, got %d", MaxLines, b.lines)
	}
	if b.channels < 1 || b.channels > MaxChannels {
		return nil, errors.Errorf("gpioevt: channel pool size must be 1-%d, got %d", MaxChannels, b.channels)
	}
	if len(b.label) == 0 {
		b.label = uniqueLabel()
	}
	return &Sim{
		label:  b.label,
		lines:  make([]simLine, b.lines),
		chans:  make([]simChannel, b.channels),
		notify: b.notify,
	}, nil
}

// simBuilder contains all the information required to build a sim.
type simBuilder struct {
	label    string // optional
	lines    int
	channels int
	notify   func()
}

// Label returns the name of the sim.
func (s *Sim) Label() string {
	return s.label
}

// Lines returns the number of pins the sim provides.
func (s *Sim) Lines() int {
	return len(s.lines)
}

// Channels returns the number of event channels the sim provides.
func (s *Sim) Channels() int {
	return len(s.chans)
}

// SetDirection implements PinRegisters.
//
// A pin becoming an input takes the level implied by its pull.
func (s *Sim) SetDirection(pin uint32, dir Direction) {
	s.mu.Lock()
	if int(pin) >= len(s.lines) {
		s.mu.Unlock()
		return
	}
	l := &s.lines[pin]
	l.dir = dir
	fire := false
	if dir == Input {
		fire = s.setLevel(int(pin), l.pull == PullUp)
	}
	s.mu.Unlock()
	if fire {
		s.fireInterrupt()
	}
}

// ReadPin implements PinRegisters.
func (s *Sim) ReadPin(pin uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(pin) >= len(s.lines) {
		return false
	}
	return s.lines[pin].level
}

// WritePin implements PinRegisters.
func (s *Sim) WritePin(pin uint32, level bool) {
	s.mu.Lock()
	fire := int(pin) < len(s.lines) && s.setLevel(int(pin), level)
	s.mu.Unlock()
	if fire {
		s.fireInterrupt()
	}
}

// TogglePin implements PinRegisters.
func (s *Sim) TogglePin(pin uint32) bool {
	s.mu.Lock()
	if int(pin) >= len(s.lines) {
		s.mu.Unlock()
		return false
	}
	level := !s.lines[pin].level
	fire := s.setLevel(int(pin), level)
	s.mu.Unlock()
	if fire {
		s.fireInterrupt()
	}
	return level
}

// SetPinPull implements PinRegisters.
//
// An input pin's level follows its pull.
func (s *Sim) SetPinPull(pin uint32, pull Pull) {
	s.mu.Lock()
	if int(pin) >= len(s.lines) {
		s.mu.Unlock()
		return
	}
	l := &s.lines[pin]
	l.pull = pull
	fire := false
	if l.dir == Input {
		fire = s.setLevel(int(pin), pull == PullUp)
	}
	s.mu.Unlock()
	if fire {
		s.fireInterrupt()
	}
}

// PinPull implements PinRegisters.
func (s *Sim) PinPull(pin uint32) Pull {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(pin) >= len(s.lines) {
		return PullNone
	}
	return s.lines[pin].pull
}

// ChannelConfig implements EventRegisters.
func (s *Sim) ChannelConfig(ch int) ChannelConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch < 0 || ch >= len(s.chans) {
		return ChannelConfig{}
	}
	return s.chans[ch].cfg
}

// SetChannelConfig implements EventRegisters.
func (s *Sim) SetChannelConfig(ch int, cfg ChannelConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch < 0 || ch >= len(s.chans) {
		return
	}
	s.chans[ch].cfg = cfg
}

// Pending implements EventRegisters.
func (s *Sim) Pending(ch int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch < 0 || ch >= len(s.chans) {
		return false
	}
	return s.chans[ch].pending
}

// ClearPending implements EventRegisters.
func (s *Sim) ClearPending(ch int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch < 0 || ch >= len(s.chans) {
		return
	}
	s.chans[ch].pending = false
}

// SetInterruptEnable implements EventRegisters.
func (s *Sim) SetInterruptEnable(ch int, enable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch < 0 || ch >= len(s.chans) {
		return
	}
	s.chans[ch].inten = enable
}

// InterruptEnabled returns whether the given channel's bit in the shared
// interrupt enable mask is set.
func (s *Sim) InterruptEnabled(ch int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch < 0 || ch >= len(s.chans) {
		return false, errors.Errorf("gpioevt: channel %d out of range for sim with %d channels", ch, len(s.chans))
	}
	return s.chans[ch].inten, nil
}

// SetPull applies an external pull to the given line, simulating the outside
// world driving it.
//
// true pulls the line high, false pulls it low.  If the line is an input its
// level follows, and any resulting edge latches events on matching channels.
func (s *Sim) SetPull(offset int, level bool) error {
	s.mu.Lock()
	if offset < 0 || offset >= len(s.lines) {
		s.mu.Unlock()
		return errors.Errorf("gpioevt: offset %d out of range for sim with %d lines", offset, len(s.lines))
	}
	l := &s.lines[offset]
	if level {
		l.pull = PullUp
	} else {
		l.pull = PullDown
	}
	fire := false
	if l.dir == Input {
		fire = s.setLevel(offset, level)
	}
	s.mu.Unlock()
	if fire {
		s.fireInterrupt()
	}
	return nil
}

// Pullup pulls the given line high.
func (s *Sim) Pullup(offset int) error {
	return s.SetPull(offset, true)
}

// Pulldown pulls the given line low.
func (s *Sim) Pulldown(offset int) error {
	return s.SetPull(offset, false)
}

// Toggle flips the pull of the given line.
//
// If it was pulled up it becomes pulled down, and vice versa.
func (s *Sim) Toggle(offset int) error {
	s.mu.Lock()
	if offset < 0 || offset >= len(s.lines) {
		s.mu.Unlock()
		return errors.Errorf("gpioevt: offset %d out of range for sim with %d lines", offset, len(s.lines))
	}
	level := s.lines[offset].pull != PullUp
	s.mu.Unlock()
	return s.SetPull(offset, level)
}

// Level returns the current level of the given line.
func (s *Sim) Level(offset int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset < 0 || offset >= len(s.lines) {
		return false, errors.Errorf("gpioevt: offset %d out of range for sim with %d lines", offset, len(s.lines))
	}
	return s.lines[offset].level, nil
}

// setLevel applies a level change to the line and latches events on matching
// channels.
//
// Returns whether a latched channel has its interrupt enabled, in which case
// the caller must call fireInterrupt once the mutex is released.
//
// Call with mu held.
func (s *Sim) setLevel(offset int, level bool) bool {
	l := &s.lines[offset]
	if l.level == level {
		return false
	}
	l.level = level
	fire := false
	for i := range s.chans {
		c := &s.chans[i]
		if c.cfg.Mode != ModeEvent || c.cfg.Owner != uint32(offset) {
			continue
		}
		if !edgeMatches(c.cfg.Polarity, level) {
			continue
		}
		c.pending = true
		if c.inten {
			fire = true
		}
	}
	return fire
}

// edgeMatches returns whether a transition to the given level satisfies the
// polarity.
func edgeMatches(p Polarity, rising bool) bool {
	switch p {
	case PolarityLoToHi:
		return rising
	case PolarityHiToLo:
		return !rising
	case PolarityToggle:
		return true
	default:
		return false
	}
}

// fireInterrupt models the shared interrupt line firing.
//
// Called without mu held, as the notifier typically re-enters the sim through
// the register interfaces.
func (s *Sim) fireInterrupt() {
	if s.notify != nil {
		s.notify()
	}
}
