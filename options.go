// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioevt

// PortOption defines the interface required to provide an option to NewPort.
type PortOption interface {
	applyPortOption(*builder)
}

// SimOption defines the interface required to provide an option to NewSim.
type SimOption interface {
	applySimOption(*simBuilder)
}

// WithLabelOption provides a name for a port or a sim.
type WithLabelOption string

// WithLabel returns an option that names the port or sim.
func WithLabel(label string) WithLabelOption {
	return WithLabelOption(label)
}

func (o WithLabelOption) applyPortOption(b *builder) {
	b.label = string(o)
}

func (o WithLabelOption) applySimOption(b *simBuilder) {
	b.label = string(o)
}

// WithLinesOption provides the number of pins for a port or a sim.
type WithLinesOption int

// WithLines returns an option that sets the number of pins exposed.
//
// The default is 32, and the maximum MaxLines.
func WithLines(lines int) WithLinesOption {
	return WithLinesOption(lines)
}

func (o WithLinesOption) applyPortOption(b *builder) {
	b.lines = int(o)
}

func (o WithLinesOption) applySimOption(b *simBuilder) {
	b.lines = int(o)
}

// WithChannelsOption provides the event channel pool size for a port or a
// sim.
type WithChannelsOption int

// WithChannels returns an option that sets the size of the event channel
// pool.
//
// The default is MaxChannels.  Chips typically provide 4 or 8 channels.
func WithChannels(channels int) WithChannelsOption {
	return WithChannelsOption(channels)
}

func (o WithChannelsOption) applyPortOption(b *builder) {
	b.channels = int(o)
}

func (o WithChannelsOption) applySimOption(b *simBuilder) {
	b.channels = int(o)
}

// WithPinsPerBankOption provides the encoding stride for a port.
type WithPinsPerBankOption int

// WithPinsPerBank returns an option that sets the number of pins in each
// hardware register bank, which is the stride of the encoded pin id.
//
// The default is 32.
func WithPinsPerBank(pins int) WithPinsPerBankOption {
	return WithPinsPerBankOption(pins)
}

func (o WithPinsPerBankOption) applyPortOption(b *builder) {
	b.pinsPerBank = int(o)
}

// WithInterruptNotifierOption provides the interrupt notifier for a sim.
type WithInterruptNotifierOption func()

// WithInterruptNotifier returns an option that sets the function the sim
// calls to model the shared interrupt line firing.
//
// The notifier is called whenever an event is latched on a channel with its
// interrupt enabled.  It is typically wired to the HandleInterrupt of the
// port under test.
func WithInterruptNotifier(notify func()) WithInterruptNotifierOption {
	return WithInterruptNotifierOption(notify)
}

func (o WithInterruptNotifierOption) applySimOption(b *simBuilder) {
	b.notify = o
}
