// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioevt

import (
	"fmt"
	"os"
	"path"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Port provides the interface to a collection of pins sharing one event
// channel pool and one hardware interrupt line.
//
// Pins are identified by offset into the port, with offsets being in the
// range 0..Lines()-1.  The offset is also the encoded pin id recorded in
// channel configurations, so resolving a fired channel back to its pin is a
// direct index, not a search.
type Port struct {
	// The name of the port, for diagnostics.
	label string

	// The encoding stride between hardware banks.
	pinsPerBank int

	// The electrical registers for the pins behind the port.
	pregs PinRegisters

	// The arbiter of the shared event channel pool.
	alloc *ChannelAllocator

	// The pin table, indexed by encoded pin id.
	pins []Pin
}

// NewPort constructs a Port over the given register interfaces.
//
// The available options are [WithLabel], [WithLines], [WithChannels] and
// [WithPinsPerBank].
//
// Providing a label is optional - if none is provided then a unique label is
// automatically generated.
func NewPort(pins PinRegisters, events EventRegisters, options ...PortOption) (*Port, error) {
	b := builder{
		lines:       32,
		channels:    MaxChannels,
		pinsPerBank: 32,
	}
	for _, o := range options {
		o.applyPortOption(&b)
	}
	return b.build(pins, events)
}

// Label returns the name of the port.
func (p *Port) Label() string {
	return p.label
}

// Lines returns the number of pins the port exposes.
func (p *Port) Lines() int {
	return len(p.pins)
}

// Channels returns the size of the port's event channel pool.
func (p *Port) Channels() int {
	return p.alloc.Channels()
}

// Allocator returns the arbiter of the port's event channel pool.
func (p *Port) Allocator() *ChannelAllocator {
	return p.alloc
}

// Pin returns the pin at the given offset into the port.
func (p *Port) Pin(offset int) (*Pin, error) {
	if offset < 0 || offset >= len(p.pins) {
		return nil, errors.Errorf("gpioevt: offset %d out of range for port with %d lines", offset, len(p.pins))
	}
	return &p.pins[offset], nil
}

// HandleInterrupt services the shared interrupt line.
//
// It is the entry point for the platform's interrupt dispatch layer and is
// called whenever the shared line fires.  Every channel with a latched event
// is serviced exactly once: the latch is cleared, the owning pin decoded from
// the channel configuration, and the pin's event handler invoked.  The latch
// is cleared before the handler runs so an edge arriving during the handler
// re-latches and is serviced on the next firing rather than being lost.
//
// A fired channel that is unbound, or whose owner cannot be resolved, is
// cleared and ignored.  HandleInterrupt never fails and performs no heap
// allocation.
func (p *Port) HandleInterrupt() {
	var fired [MaxChannels]func()
	n := 0
	a := p.alloc
	a.mu.Lock()
	for ch := 0; ch < a.chans; ch++ {
		if !a.regs.Pending(ch) {
			continue
		}
		a.regs.ClearPending(ch)
		cfg := a.regs.ChannelConfig(ch)
		if cfg.Mode == ModeDisabled || cfg.Owner >= uint32(len(p.pins)) {
			continue
		}
		if h := p.pins[cfg.Owner].handler; h != nil {
			fired[n] = h
			n++
		}
	}
	a.mu.Unlock()
	// dispatch outside the critical section so handlers may reconfigure
	// their own pins
	for i := 0; i < n; i++ {
		fired[i]()
	}
}

// builder contains all the information required to build a port.
type builder struct {
	// The label for the port.
	//
	// If empty when build is called then a unique label is generated.
	label string // optional

	// The number of pins the port exposes.
	lines int

	// The size of the event channel pool.
	channels int

	// The encoding stride between hardware banks.
	pinsPerBank int
}

// build validates the configuration and constructs the port.
func (b *builder) build(pins PinRegisters, events EventRegisters) (*Port, error) {
	if pins == nil || events == nil {
		return nil, errors.New("gpioevt: nil register interface")
	}
	if b.lines < 1 || b.lines > MaxLines {
		return nil, errors.Errorf("gpioevt: line count must be 1-%d, got %d", MaxLines, b.lines)
	}
	if b.pinsPerBank < 1 {
		return nil, errors.Errorf("gpioevt: pins per bank must be positive, got %d", b.pinsPerBank)
	}
	alloc, err := NewChannelAllocator(events, b.channels)
	if err != nil {
		return nil, err
	}
	if len(b.label) == 0 {
		b.label = uniqueLabel()
	}
	p := &Port{
		label:       b.label,
		pinsPerBank: b.pinsPerBank,
		pregs:       pins,
		alloc:       alloc,
		pins:        make([]Pin, b.lines),
	}
	for i := range p.pins {
		p.pins[i] = Pin{port: p, num: uint32(i)}
	}
	return p, nil
}

var portCounter uint32 = 0

// uniqueLabel returns a label for the port that is very likely to be unique,
// using the appname, PID and a monotonic atomic counter.
func uniqueLabel() string {
	return fmt.Sprintf("%s-p%d-%d", appName(), os.Getpid(), atomic.AddUint32(&portCounter, 1))
}

// appName returns the name of the running executable.
//
// Falls back to "gpioevt" if that can't be determined for some reason.
func appName() string {
	str, err := os.Executable()
	if err != nil {
		return "gpioevt"
	}
	return path.Base(str)
}
