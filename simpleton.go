// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioevt

// Simpleton bundles a Sim and a Port over it, with the sim's interrupt line
// wired to the port's HandleInterrupt, for situations where nothing fancier
// is required.
//
// Pulling a line through the embedded Sim raises the edge, latches the event
// and dispatches the owning pin's handler synchronously.
type Simpleton struct {
	*Sim

	port *Port
}

// NewSimpleton constructs a Simpleton with the given number of lines and a 4
// channel event pool, the small chip variant.
func NewSimpleton(numLines int) (*Simpleton, error) {
	s, err := NewSim(WithLines(numLines), WithChannels(4))
	if err != nil {
		return nil, err
	}
	p, err := NewPort(s, s,
		WithLines(numLines),
		WithChannels(4),
		WithLabel(s.Label()),
	)
	if err != nil {
		return nil, err
	}
	s.notify = p.HandleInterrupt
	return &Simpleton{Sim: s, port: p}, nil
}

// Port returns the port over the sim.
func (s *Simpleton) Port() *Port {
	return s.port
}

// Pin returns the pin at the given offset into the port.
func (s *Simpleton) Pin(offset int) (*Pin, error) {
	return s.port.Pin(offset)
}
