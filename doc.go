// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

/*
Package gpioevt manages GPIO pins on hardware where the pin peripheral
cannot raise interrupts itself.  Instead a small fixed pool of shared
event channels must be bound to a pin before that pin can deliver
edge-triggered notifications, so pins compete for channels and the
package arbitrates: it allocates a channel when a pin enables
interrupts, finds the channel a pin owns, releases it on disable, and
demultiplexes the shared interrupt line back to the owning pin's
handler.

The hardware itself sits behind two small register interfaces,
[PinRegisters] for per-pin electrical state and [EventRegisters] for
the channel pool, so the same core drives real silicon, the in-memory
[Sim], or real Linux GPIO lines via [Cdev].

A [Port] is the unit of construction.  It owns the pin table, the
[ChannelAllocator] and the interrupt dispatch:

	port, err := gpioevt.NewPort(pinRegs, evtRegs,
		gpioevt.WithChannels(8),
		gpioevt.WithLines(48),
	)
	pin, err := port.Pin(17)
	pin.SetEventHandler(func() { ... })
	err = pin.EnableInterrupts(gpioevt.EdgeRising)

The platform's interrupt dispatch layer calls [Port.HandleInterrupt]
whenever the shared line fires; the port services every fired channel
exactly once and invokes the owning pins' handlers.

Channel exhaustion is an ordinary condition, not a fault.
[Pin.EnableInterrupts] returns [ErrNoChannelAvailable] and leaves the
pin without interrupt capability; the caller decides whether to degrade
or to retry later.

For tests that need nothing fancy the [Simpleton] bundles a [Sim] and a
[Port] with the simulator's interrupt line already wired to the port:

	s, err := gpioevt.NewSimpleton(8)
	pin, err := s.Pin(3)
	pin.SetEventHandler(func() { ... })
	pin.EnableInterrupts(gpioevt.EdgeRising)
	s.Pullup(3) // raises the edge and fires the handler
*/
package gpioevt
