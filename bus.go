package nrf24

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
)

// command frames a single chip command: CSN low, one contiguous transfer of
// the command byte followed by w, CSN high. When r is not nil it receives
// the bytes clocked in after the command byte. The returned Status is the
// first byte the chip shifted out.
func (r *Radio) command(cmd Command, w, rd []byte) (Status, error) {
	out := make([]byte, 1+len(w))
	out[0] = byte(cmd)
	copy(out[1:], w)
	in := make([]byte, len(out))

	if r.failed != nil {
		return 0, fmt.Errorf("nrf24: command 0x%02x: %w", byte(cmd), r.failed)
	}
	if err := r.setCSN(gpio.Low); err != nil {
		return 0, err
	}
	err := r.tx(out, in)
	if e := r.setCSN(gpio.High); err == nil {
		err = e
	}
	if err != nil {
		return 0, fmt.Errorf("nrf24: command 0x%02x: %w", byte(cmd), err)
	}
	if rd != nil {
		copy(rd, in[1:])
	}
	s := Status(in[0])
	r.log.WithFields(logrus.Fields{"cmd": fmt.Sprintf("0x%02x", byte(cmd)), "status": s}).Trace("spi")
	return s, nil
}

// tx runs one bus transfer bounded by the configured timeout. After a
// timeout the goroutine may still own the bus, so the radio is marked failed.
func (r *Radio) tx(w, rd []byte) error {
	if r.timeout <= 0 {
		return r.conn.Tx(w, rd)
	}
	done := make(chan error, 1)
	go func() {
		done <- r.conn.Tx(w, rd)
	}()
	t := time.NewTimer(r.timeout)
	defer t.Stop()
	select {
	case err := <-done:
		return err
	case <-t.C:
		r.failed = ErrTransportTimeout
		return ErrTransportTimeout
	}
}

func (r *Radio) setCSN(l gpio.Level) error {
	if r.csn == nil {
		return nil
	}
	return r.csn.Out(l)
}

func (r *Radio) setCE(l gpio.Level) error {
	if err := r.ce.Out(l); err != nil {
		return fmt.Errorf("nrf24: ce: %w", err)
	}
	r.ceLevel = l
	return nil
}

func nops(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(CmdNop)
	}
	return b
}

func (r *Radio) ReadRegister(reg Register) (byte, error) {
	var b [1]byte
	_, err := r.command(CmdReadRegister|Command(reg&registerMask), nops(1), b[:])
	return b[0], err
}

func (r *Radio) ReadRegisterMulti(reg Register, count int) ([]byte, error) {
	b := make([]byte, count)
	_, err := r.command(CmdReadRegister|Command(reg&registerMask), nops(count), b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Radio) WriteRegister(reg Register, value byte) error {
	return r.WriteRegisterMulti(reg, value)
}

func (r *Radio) WriteRegisterMulti(reg Register, bytes ...byte) error {
	_, err := r.command(CmdWriteRegister|Command(reg&registerMask), bytes, nil)
	return err
}

// ReadBit reports whether any bit of mask is set in reg.
func (r *Radio) ReadBit(reg Register, mask byte) (bool, error) {
	v, err := r.ReadRegister(reg)
	if err != nil {
		return false, err
	}
	return v&mask != 0, nil
}

// WriteBit sets or clears the bits of mask in reg, leaving the rest intact.
func (r *Radio) WriteBit(reg Register, mask byte, on bool) error {
	v, err := r.ReadRegister(reg)
	if err != nil {
		return err
	}
	return r.WriteRegister(reg, withBits(v, mask, on))
}

func (r *Radio) FlushTx() error {
	_, err := r.command(CmdFlushTx, nil, nil)
	return err
}

func (r *Radio) FlushRx() error {
	_, err := r.command(CmdFlushRx, nil, nil)
	return err
}

// ReadPayload pops count bytes from the RX FIFO.
func (r *Radio) ReadPayload(count int) ([]byte, error) {
	b := make([]byte, count)
	if _, err := r.command(CmdReadPayload, nops(count), b); err != nil {
		return nil, err
	}
	return b, nil
}

// WritePayload pushes one payload into the TX FIFO.
func (r *Radio) WritePayload(data []byte) error {
	_, err := r.command(CmdWritePayload, data, nil)
	return err
}
