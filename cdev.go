// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

//go:build linux

package gpioevt

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// Cdev implements the register interfaces over a Linux GPIO character
// device, so real kernel GPIO lines stand in for the pin hardware.
//
// The kernel provides no event channel peripheral, so the channel pool is
// emulated: binding a channel to a pin requests the corresponding line with
// kernel edge detection, and delivered edge events latch the channel's
// pending flag and fire the interrupt notifier, which should be wired to the
// HandleInterrupt of the port using the Cdev.
//
// Register operations cannot return errors, so the first failure to request
// or reconfigure a line is latched and available from Err.
//
// As on the hardware the registers model, reconfiguration is expected from a
// single foreground goroutine; only the interrupt dispatch runs concurrently
// with it.
type Cdev struct {
	// Guards lines, chans, notify and err.
	//
	// Never held across a line request or close - closing a line waits
	// for its in-flight event handler, and the handler takes the mutex.
	mu sync.Mutex

	// The path to the gpiochip device, e.g. "/dev/gpiochip0".
	path string

	// The consumer applied to requested lines.
	consumer string

	// Called by the dispatcher when an event is latched on a channel with
	// its interrupt enabled.
	notify func()

	// Wakes the dispatcher.  Buffered to one token - the notifier scans
	// every channel, so notifications coalesce.
	notifyCh chan struct{}

	// Closed to stop the dispatcher.
	done chan struct{}

	closeOnce sync.Once

	// The requested lines, by offset, created lazily.
	lines map[int]*cdevLine

	// The emulated event channel pool.
	chans []cdevChannel

	// The first line request failure, latched.
	err error
}

// cdevLine is the tracked state of one line.
type cdevLine struct {
	line *gpiocdev.Line
	dir  Direction
	pull Pull

	// The last level written, applied when the line is an output.
	out bool
}

// cdevChannel is the state of one emulated event channel.
type cdevChannel struct {
	cfg     ChannelConfig
	pending bool
	inten   bool
}

// CdevOption defines the interface required to provide an option to NewCdev.
type CdevOption interface {
	applyCdevOption(*cdevBuilder)
}

// cdevBuilder contains all the information required to build a Cdev.
type cdevBuilder struct {
	consumer string // optional
	channels int
	notify   func()
}

func (o WithLabelOption) applyCdevOption(b *cdevBuilder) {
	b.consumer = string(o)
}

func (o WithChannelsOption) applyCdevOption(b *cdevBuilder) {
	b.channels = int(o)
}

func (o WithInterruptNotifierOption) applyCdevOption(b *cdevBuilder) {
	b.notify = o
}

// NewCdev constructs a Cdev over the gpiochip at the given path.
//
// The available options are [WithLabel], which sets the consumer applied to
// requested lines, [WithChannels] and [WithInterruptNotifier].
//
// The notifier is usually the HandleInterrupt of a port that does not exist
// until the Cdev does; wire it afterwards with SetInterruptNotifier.
func NewCdev(path string, options ...CdevOption) (*Cdev, error) {
	b := cdevBuilder{
		channels: MaxChannels,
	}
	for _, o := range options {
		o.applyCdevOption(&b)
	}
	if b.channels < 1 || b.channels > MaxChannels {
		return nil, errors.Errorf("gpioevt: channel pool size must be 1-%d, got %d", MaxChannels, b.channels)
	}
	if len(b.consumer) == 0 {
		b.consumer = "gpioevt"
	}
	// fail fast if the chip isn't there
	ch, err := gpiocdev.NewChip(path)
	if err != nil {
		return nil, errors.Wrapf(err, "gpioevt: can't open gpiochip %s", path)
	}
	ch.Close()
	c := &Cdev{
		path:     path,
		consumer: b.consumer,
		notify:   b.notify,
		notifyCh: make(chan struct{}, 1),
		done:     make(chan struct{}),
		lines:    map[int]*cdevLine{},
		chans:    make([]cdevChannel, b.channels),
	}
	go c.dispatch()
	return c, nil
}

// SetInterruptNotifier sets the function called to model the shared
// interrupt line firing.
//
// Wire this to the HandleInterrupt of the port using the Cdev before
// enabling any interrupts.
func (c *Cdev) SetInterruptNotifier(notify func()) {
	c.mu.Lock()
	c.notify = notify
	c.mu.Unlock()
}

// Err returns the first line request failure, or nil.
func (c *Cdev) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close stops the dispatcher and releases all requested lines.
func (c *Cdev) Close() {
	c.closeOnce.Do(func() { close(c.done) })
	c.mu.Lock()
	lines := make([]*gpiocdev.Line, 0, len(c.lines))
	for _, l := range c.lines {
		if l.line != nil {
			lines = append(lines, l.line)
			l.line = nil
		}
	}
	c.mu.Unlock()
	for _, l := range lines {
		l.Close()
	}
}

// dispatch delivers interrupt notifications from the event handler to the
// notifier.
//
// Decoupling the two means the event handler never blocks on locks held by
// foreground code, so foreground reconfiguration may safely close lines that
// are mid-event.
func (c *Cdev) dispatch() {
	for {
		select {
		case <-c.done:
			return
		case <-c.notifyCh:
			c.mu.Lock()
			notify := c.notify
			c.mu.Unlock()
			if notify != nil {
				notify()
			}
		}
	}
}

// SetDirection implements PinRegisters.
func (c *Cdev) SetDirection(pin uint32, dir Direction) {
	c.mu.Lock()
	c.state(int(pin)).dir = dir
	c.mu.Unlock()
	c.rebuild(int(pin))
}

// ReadPin implements PinRegisters.
func (c *Cdev) ReadPin(pin uint32) bool {
	line := c.requested(int(pin))
	if line == nil {
		return false
	}
	v, err := line.Value()
	if err != nil {
		c.mu.Lock()
		c.setErr(err)
		c.mu.Unlock()
		return false
	}
	return v != 0
}

// WritePin implements PinRegisters.
//
// The level is applied immediately if the pin is an output, and otherwise
// recorded and applied when the pin becomes one.
func (c *Cdev) WritePin(pin uint32, level bool) {
	line := c.requested(int(pin))
	c.mu.Lock()
	l := c.state(int(pin))
	l.out = level
	if l.dir != Output || line == nil {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	v := 0
	if level {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		c.mu.Lock()
		c.setErr(err)
		c.mu.Unlock()
	}
}

// TogglePin implements PinRegisters.
func (c *Cdev) TogglePin(pin uint32) bool {
	c.mu.Lock()
	level := !c.state(int(pin)).out
	c.mu.Unlock()
	c.WritePin(pin, level)
	return level
}

// SetPinPull implements PinRegisters.
func (c *Cdev) SetPinPull(pin uint32, pull Pull) {
	c.mu.Lock()
	c.state(int(pin)).pull = pull
	c.mu.Unlock()
	c.rebuild(int(pin))
}

// PinPull implements PinRegisters.
func (c *Cdev) PinPull(pin uint32) Pull {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state(int(pin)).pull
}

// ChannelConfig implements EventRegisters.
func (c *Cdev) ChannelConfig(ch int) ChannelConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch < 0 || ch >= len(c.chans) {
		return ChannelConfig{}
	}
	return c.chans[ch].cfg
}

// SetChannelConfig implements EventRegisters.
//
// Binding a channel to a pin requests the pin's line with the kernel edge
// detection matching the union of all channels bound to that line.
func (c *Cdev) SetChannelConfig(ch int, cfg ChannelConfig) {
	c.mu.Lock()
	if ch < 0 || ch >= len(c.chans) {
		c.mu.Unlock()
		return
	}
	old := c.chans[ch].cfg
	c.chans[ch].cfg = cfg
	c.mu.Unlock()
	if old.Mode == ModeEvent && (cfg.Mode != ModeEvent || cfg.Owner != old.Owner) {
		c.rebuild(int(old.Owner))
	}
	if cfg.Mode == ModeEvent {
		c.rebuild(int(cfg.Owner))
	}
}

// Pending implements EventRegisters.
func (c *Cdev) Pending(ch int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch < 0 || ch >= len(c.chans) {
		return false
	}
	return c.chans[ch].pending
}

// ClearPending implements EventRegisters.
func (c *Cdev) ClearPending(ch int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch < 0 || ch >= len(c.chans) {
		return
	}
	c.chans[ch].pending = false
}

// SetInterruptEnable implements EventRegisters.
func (c *Cdev) SetInterruptEnable(ch int, enable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch < 0 || ch >= len(c.chans) {
		return
	}
	c.chans[ch].inten = enable
}

// state returns the tracked state for the line, creating it on first use.
//
// Call with mu held.
func (c *Cdev) state(offset int) *cdevLine {
	l, ok := c.lines[offset]
	if !ok {
		l = &cdevLine{}
		c.lines[offset] = l
	}
	return l
}

// requested returns the requested line for the offset, requesting it on
// first use.
func (c *Cdev) requested(offset int) *gpiocdev.Line {
	c.mu.Lock()
	line := c.state(offset).line
	c.mu.Unlock()
	if line != nil {
		return line
	}
	c.rebuild(offset)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state(offset).line
}

// edgeNeeds returns the kernel edge detection required by the channels bound
// to the line.
//
// Call with mu held.
func (c *Cdev) edgeNeeds(offset int) (rising, falling bool) {
	for i := range c.chans {
		cfg := c.chans[i].cfg
		if cfg.Mode != ModeEvent || cfg.Owner != uint32(offset) {
			continue
		}
		switch cfg.Polarity {
		case PolarityLoToHi:
			rising = true
		case PolarityHiToLo:
			falling = true
		case PolarityToggle:
			rising = true
			falling = true
		}
	}
	return
}

// rebuild releases the line and re-requests it to match the tracked
// direction, pull and edge detection.
//
// A line requested for edge detection is necessarily an input.
//
// Call without mu held.
func (c *Cdev) rebuild(offset int) {
	c.mu.Lock()
	l := c.state(offset)
	old := l.line
	l.line = nil
	rising, falling := c.edgeNeeds(offset)
	dir, pull, out := l.dir, l.pull, l.out
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	opts := []gpiocdev.LineReqOption{gpiocdev.WithConsumer(c.consumer)}
	switch {
	case rising && falling:
		opts = append(opts, gpiocdev.AsInput, gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(c.handleEvent))
	case rising:
		opts = append(opts, gpiocdev.AsInput, gpiocdev.WithRisingEdge,
			gpiocdev.WithEventHandler(c.handleEvent))
	case falling:
		opts = append(opts, gpiocdev.AsInput, gpiocdev.WithFallingEdge,
			gpiocdev.WithEventHandler(c.handleEvent))
	case dir == Output:
		v := 0
		if out {
			v = 1
		}
		opts = append(opts, gpiocdev.AsOutput(v))
	default:
		opts = append(opts, gpiocdev.AsInput)
	}
	switch pull {
	case PullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case PullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	}
	line, err := gpiocdev.RequestLine(c.path, offset, opts...)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.setErr(err)
		return
	}
	c.state(offset).line = line
}

// handleEvent latches the event on every channel bound to the line whose
// polarity matches the edge, and wakes the dispatcher if a latched channel
// has its interrupt enabled.
//
// Runs on the gpiocdev event goroutine.
func (c *Cdev) handleEvent(evt gpiocdev.LineEvent) {
	rising := evt.Type == gpiocdev.LineEventRisingEdge
	fire := false
	c.mu.Lock()
	for i := range c.chans {
		ch := &c.chans[i]
		if ch.cfg.Mode != ModeEvent || ch.cfg.Owner != uint32(evt.Offset) {
			continue
		}
		if !edgeMatches(ch.cfg.Polarity, rising) {
			continue
		}
		ch.pending = true
		if ch.inten {
			fire = true
		}
	}
	c.mu.Unlock()
	if fire {
		select {
		case c.notifyCh <- struct{}{}:
		default:
		}
	}
}

// setErr latches the first failure.
//
// Call with mu held.
func (c *Cdev) setErr(err error) {
	if c.err == nil {
		c.err = err
	}
}
