// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioevt

import "github.com/pkg/errors"

var (
	// ErrNoChannelAvailable indicates every event channel in the pool is
	// already bound to a pin.
	//
	// This is an ordinary resource exhaustion condition, not a fault - the
	// pin is left without interrupt capability and the caller decides
	// whether to degrade or retry once another pin releases its channel.
	ErrNoChannelAvailable = errors.New("gpioevt: no event channel available")

	// ErrChannelNotFound indicates the pin does not currently own an event
	// channel.
	//
	// Callers generally treat this as "nothing to do" rather than as an
	// error.
	ErrChannelNotFound = errors.New("gpioevt: no event channel bound to pin")
)

const (
	// MaxChannels is the largest event channel pool the interrupt-enable
	// register can address.
	MaxChannels = 8

	// MaxLines is the largest number of pins the channel owner field can
	// encode.
	MaxLines = 64
)

// Direction indicates whether a pin is an input or an output.
type Direction int

const (
	// Input pins are read.
	Input Direction = iota

	// Output pins are driven.
	Output
)

// Pull indicates the pull resistor applied to a pin.
type Pull int

const (
	// PullNone leaves the pin floating.
	PullNone Pull = iota

	// PullDown pulls the pin low.
	PullDown

	// PullUp pulls the pin high.
	PullUp
)

// Mode indicates how an event channel is being used.
type Mode int

const (
	// ModeDisabled channels are unbound and available for allocation.
	ModeDisabled Mode = iota

	// ModeEvent channels generate an event when the configured edge occurs
	// on the owner pin.
	ModeEvent

	// ModeTask channels drive the owner pin from hardware tasks.
	//
	// Task usage is outside the scope of this package but the mode exists
	// in the channel configuration.
	ModeTask
)

// Polarity indicates the pin transition that raises a channel's event.
type Polarity int

const (
	// PolarityNone generates no events.
	PolarityNone Polarity = iota

	// PolarityLoToHi generates an event on a rising edge.
	PolarityLoToHi

	// PolarityHiToLo generates an event on a falling edge.
	PolarityHiToLo

	// PolarityToggle generates an event on any edge.
	PolarityToggle
)

// Edge indicates the pin transitions a consumer wants notifications for.
type Edge int

const (
	// EdgeRising requests events on low to high transitions.
	EdgeRising Edge = iota

	// EdgeFalling requests events on high to low transitions.
	EdgeFalling

	// EdgeBoth requests events on all transitions.
	EdgeBoth
)

// polarity maps the requested edge to the hardware polarity encoding.
func (e Edge) polarity() Polarity {
	switch e {
	case EdgeFalling:
		return PolarityHiToLo
	case EdgeBoth:
		return PolarityToggle
	default:
		return PolarityLoToHi
	}
}

// ChannelConfig is the configuration of one event channel.
//
// The configuration doubles as the allocation record - a channel with mode
// ModeDisabled is free, and otherwise Owner identifies the pin bound to it.
// There is no separate bookkeeping table.
type ChannelConfig struct {
	// How the channel is being used, or ModeDisabled if it is free.
	Mode Mode

	// The pin bound to the channel, as the encoded pin id
	// (bank*pinsPerBank + offset).
	//
	// Only meaningful when Mode is not ModeDisabled.
	Owner uint32

	// The pin transition that raises the channel's event.
	Polarity Polarity
}

// PinRegisters provides access to the electrical state of the pins behind a
// port.
//
// Each call reads or writes exactly one pin's register state.  Implementations
// over real registers must make each operation a single register access;
// implementations that cannot are still safe as the core never requires
// atomicity across PinRegisters calls.
type PinRegisters interface {
	// SetDirection configures the pin as an input or an output.
	SetDirection(pin uint32, dir Direction)

	// ReadPin returns the current level of the pin.
	ReadPin(pin uint32) bool

	// WritePin drives the pin to the given level.
	WritePin(pin uint32, level bool)

	// TogglePin inverts the driven level of the pin and returns the new
	// level.
	TogglePin(pin uint32) bool

	// SetPinPull applies a pull resistor to the pin.
	SetPinPull(pin uint32, pull Pull)

	// PinPull returns the pull resistor currently applied to the pin.
	PinPull(pin uint32) Pull
}

// EventRegisters provides access to the shared event channel pool behind a
// port.
//
// Channels are addressed by index, 0..numChannels-1.  The pending flag is
// latched by the hardware when the configured edge occurs and remains set
// until explicitly cleared.
type EventRegisters interface {
	// ChannelConfig returns the current configuration of the channel.
	ChannelConfig(ch int) ChannelConfig

	// SetChannelConfig writes the configuration of the channel.
	SetChannelConfig(ch int, cfg ChannelConfig)

	// Pending returns whether the channel's event has fired since the flag
	// was last cleared.
	Pending(ch int) bool

	// ClearPending clears the channel's latched event flag.
	ClearPending(ch int)

	// SetInterruptEnable sets or clears the channel's bit in the shared
	// interrupt enable mask.
	SetInterruptEnable(ch int, enable bool)
}
