// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioevt

// Pin provides the interface to a single pin on a port.
//
// Electrical operations write through to the pin registers directly.
// Interrupt operations go through the port's channel allocator, as delivering
// edge notifications requires binding one of the shared event channels to the
// pin.
type Pin struct {
	// The port the pin belongs to.
	port *Port

	// The encoded pin id (bank*pinsPerBank + offset), which is also the
	// pin's offset into the port.
	num uint32

	// The handler invoked when the pin's event channel fires.
	//
	// Guarded by the port allocator's mutex.
	handler func()
}

// Num returns the encoded pin id recorded in channel configurations.
func (p *Pin) Num() uint32 {
	return p.num
}

// Bank returns the index of the hardware register bank the pin belongs to.
func (p *Pin) Bank() int {
	return int(p.num) / p.port.pinsPerBank
}

// Offset returns the pin's offset within its hardware register bank.
func (p *Pin) Offset() int {
	return int(p.num) % p.port.pinsPerBank
}

// SetDirection configures the pin as an input or an output.
func (p *Pin) SetDirection(dir Direction) {
	p.port.pregs.SetDirection(p.num, dir)
}

// Read returns the current level of the pin.
func (p *Pin) Read() bool {
	return p.port.pregs.ReadPin(p.num)
}

// Write drives the pin to the given level.
func (p *Pin) Write(level bool) {
	p.port.pregs.WritePin(p.num, level)
}

// Toggle inverts the driven level of the pin and returns the new level.
func (p *Pin) Toggle() bool {
	return p.port.pregs.TogglePin(p.num)
}

// SetPull applies a pull resistor to the pin.
func (p *Pin) SetPull(pull Pull) {
	p.port.pregs.SetPinPull(p.num, pull)
}

// Pull returns the pull resistor currently applied to the pin.
func (p *Pin) Pull() Pull {
	return p.port.pregs.PinPull(p.num)
}

// Pullup pulls the pin high.
func (p *Pin) Pullup() {
	p.SetPull(PullUp)
}

// Pulldown pulls the pin low.
func (p *Pin) Pulldown() {
	p.SetPull(PullDown)
}

// SetEventHandler sets the handler invoked when the pin's event channel
// fires.
//
// A pin has at most one handler - setting a new handler replaces any
// previous one, and a nil handler clears it.  A pin whose channel fires with
// no handler set is serviced silently.  The handler may be set before or
// after interrupts are enabled.
func (p *Pin) SetEventHandler(handler func()) {
	a := p.port.alloc
	a.mu.Lock()
	p.handler = handler
	a.mu.Unlock()
}

// EnableInterrupts binds an event channel to the pin and configures it to
// raise events on the given edge.
//
// If the pin already has interrupts enabled its existing channel is
// reconfigured with the new edge.  Returns ErrNoChannelAvailable if the
// channel pool is exhausted, in which case the pin is left without interrupt
// capability - an ordinary condition the caller may handle by degrading or
// retrying after another pin disables its interrupts.
func (p *Pin) EnableInterrupts(edge Edge) error {
	_, err := p.port.alloc.Allocate(p.num, edge.polarity())
	return err
}

// DisableInterrupts releases the pin's event channel back to the pool.
//
// A no-op if the pin has no interrupts enabled, so it is safe to call
// repeatedly.
func (p *Pin) DisableInterrupts() {
	p.port.alloc.ReleaseOwner(p.num)
}

// IsPending returns whether the pin's event channel has a latched event that
// has not yet been serviced.
//
// Returns false if the pin has no interrupts enabled.
func (p *Pin) IsPending() bool {
	return p.port.alloc.OwnerPending(p.num)
}
