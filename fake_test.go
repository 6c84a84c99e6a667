package nrf24

import (
	"bytes"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi"
)

// event is one pin edge or one SPI frame seen by the fake chip.
type event struct {
	pin   string
	level gpio.Level
	frame []byte
}

type rxPayload struct {
	pipe int
	data []byte
}

// fakeChip models enough of an nRF24L01+ to drive the radio end to end:
// register file, FIFOs, write-1-to-clear interrupt flags and a transmission
// that completes a fixed number of commands after CE rises in PTX.
type fakeChip struct {
	regs   [0x20][]byte
	flags  Status
	rx     []rxPayload
	tx     [][]byte
	ceHigh bool

	// ack selects TX_DS (true) or MAX_RT (false) as the outcome of a send.
	ack bool
	// airtime is the number of commands a send stays in flight.
	airtime int
	sending bool
	pending int

	// hold, when set, blocks every transfer until closed.
	hold chan struct{}
	// fail makes transfers starting with these command bytes return the error.
	fail map[byte]error

	events []event
	writes map[Register]int
}

func newFakeChip() *fakeChip {
	c := &fakeChip{ack: true, writes: map[Register]int{}}
	for _, d := range powerOnDefaults {
		c.regs[d.reg] = append([]byte(nil), d.val...)
	}
	return c
}

func (c *fakeChip) String() string      { return "fakeChip" }
func (c *fakeChip) Duplex() conn.Duplex { return conn.Full }

func (c *fakeChip) TxPackets(p []spi.Packet) error {
	for _, pk := range p {
		if err := c.Tx(pk.W, pk.R); err != nil {
			return err
		}
	}
	return nil
}

func (c *fakeChip) Tx(w, r []byte) error {
	if c.hold != nil {
		<-c.hold
	}
	if err := c.fail[w[0]]; err != nil {
		return err
	}
	c.events = append(c.events, event{frame: append([]byte(nil), w...)})
	c.advance()
	if len(r) > 0 {
		r[0] = byte(c.status())
	}
	cmd := w[0]
	switch {
	case cmd == byte(CmdNop):
	case cmd == byte(CmdFlushTx):
		c.tx = nil
	case cmd == byte(CmdFlushRx):
		c.rx = nil
	case cmd == byte(CmdReadPayload):
		if len(c.rx) > 0 {
			copy(r[1:], c.rx[0].data)
			c.rx = c.rx[1:]
		}
	case cmd == byte(CmdWritePayload):
		c.tx = append(c.tx, append([]byte(nil), w[1:]...))
	case cmd&0xe0 == byte(CmdWriteRegister):
		c.writeReg(Register(cmd&registerMask), w[1:])
	case cmd&0xe0 == byte(CmdReadRegister):
		copy(r[1:], c.readReg(Register(cmd&registerMask)))
	}
	return nil
}

func (c *fakeChip) writeReg(reg Register, v []byte) {
	c.writes[reg]++
	switch reg {
	case RegStatus:
		c.flags &^= Status(v[0]) & IRQMask
	case RegFifoStatus:
	default:
		c.regs[reg] = append([]byte(nil), v...)
	}
}

func (c *fakeChip) readReg(reg Register) []byte {
	switch reg {
	case RegStatus:
		return []byte{byte(c.status())}
	case RegFifoStatus:
		return []byte{byte(c.fifo())}
	}
	return c.regs[reg]
}

func (c *fakeChip) status() Status {
	s := c.flags & IRQMask
	if len(c.rx) == 0 {
		s |= rxPipeMask
	} else {
		s |= Status(c.rx[0].pipe << 1)
	}
	if len(c.tx) >= 3 {
		s |= TxFull
	}
	return s
}

func (c *fakeChip) fifo() FIFO {
	var f FIFO
	if len(c.rx) == 0 {
		f |= RxEmpty
	}
	if len(c.rx) >= 3 {
		f |= RxFull
	}
	if len(c.tx) == 0 {
		f |= TxEmpty
	}
	if len(c.tx) >= 3 {
		f |= TxFifoFull
	}
	return f
}

func (c *fakeChip) config() Cfg {
	return Cfg(c.regs[RegConfig][0])
}

func (c *fakeChip) setCE(l gpio.Level) {
	rising := l == gpio.High && !c.ceHigh
	c.ceHigh = l == gpio.High
	cfg := c.config()
	if rising && cfg.Has(PwrUp) && !cfg.Has(PrimRx) && len(c.tx) > 0 {
		c.sending = true
		c.pending = c.airtime
	}
}

// advance completes an in-flight send once its airtime is used up.
func (c *fakeChip) advance() {
	if !c.sending {
		return
	}
	if c.pending > 0 {
		c.pending--
		return
	}
	c.sending = false
	if c.ack {
		c.flags |= TxDS
		c.tx = c.tx[1:]
		c.regs[RegObserveTx] = []byte{0x00}
		return
	}
	c.flags |= MaxRT
	c.regs[RegObserveTx] = []byte{0x1f}
}

// deliver places a payload received on pipe into the RX FIFO.
func (c *fakeChip) deliver(pipe int, data []byte) {
	c.rx = append(c.rx, rxPayload{pipe: pipe, data: data})
	c.flags |= RxDR
}

// frames returns the SPI frames recorded since index from.
func (c *fakeChip) frames(from int) [][]byte {
	var out [][]byte
	for _, e := range c.events[from:] {
		if e.frame != nil {
			out = append(out, e.frame)
		}
	}
	return out
}

func (c *fakeChip) hasFrame(from int, want []byte) bool {
	for _, f := range c.frames(from) {
		if bytes.Equal(f, want) {
			return true
		}
	}
	return false
}

// fakePin is a gpiotest.Pin that reports its edges to the chip.
type fakePin struct {
	*gpiotest.Pin
	chip *fakeChip
}

func (p *fakePin) Out(l gpio.Level) error {
	if err := p.Pin.Out(l); err != nil {
		return err
	}
	p.chip.events = append(p.chip.events, event{pin: p.N, level: l})
	if p.N == "CE" {
		p.chip.setCE(l)
	}
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func testConfig(channel uint8, size int) Config {
	return Config{
		Channel:     channel,
		PayloadSize: size,
		Timeout:     -1,
		DataRate:    DataRate2M,
		OutputPower: OutputPower0dBm,
		Logger:      quietLogger(),
	}
}

type testRig struct {
	chip *fakeChip
	ce   *fakePin
	csn  *fakePin
}

func newRig() *testRig {
	c := newFakeChip()
	return &testRig{
		chip: c,
		ce:   &fakePin{Pin: &gpiotest.Pin{N: "CE", L: gpio.High}, chip: c},
		csn:  &fakePin{Pin: &gpiotest.Pin{N: "CSN", L: gpio.Low}, chip: c},
	}
}

func newTestRadio(t *testing.T, channel uint8, size int) (*Radio, *testRig) {
	t.Helper()
	rig := newRig()
	r, err := New(rig.chip, rig.ce, rig.csn, testConfig(channel, size))
	if err != nil {
		t.Fatal(err)
	}
	return r, rig
}
