package nrf24

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

type TransmissionStatus byte

const (
	Sending TransmissionStatus = iota
	Ok
	Lost
)

func (t TransmissionStatus) String() string {
	switch t {
	case Sending:
		return "sending"
	case Ok:
		return "ok"
	case Lost:
		return "lost"
	}
	return "unknown"
}

// transmissionStatus checks TX_DS first: a stale MAX_RT from an earlier
// attempt may still be set next to a fresh success.
func transmissionStatus(s Status) TransmissionStatus {
	switch {
	case s.Has(TxDS):
		return Ok
	case s.Has(MaxRT):
		return Lost
	}
	return Sending
}

// GetStatus samples STATUS with a NOP command.
func (r *Radio) GetStatus() (Status, error) {
	return r.command(CmdNop, nil, nil)
}

// ReadInterrupts returns the STATUS byte without clearing any flag. Test it
// against RxDR, TxDS and MaxRT, or mask it with IRQMask.
func (r *Radio) ReadInterrupts() (Status, error) {
	return r.GetStatus()
}

// GetTransmissionStatus reports the state of the last Transmit. On Lost the
// payload is still in the TX FIFO; flush it before sending again.
func (r *Radio) GetTransmissionStatus() (TransmissionStatus, error) {
	s, err := r.GetStatus()
	if err != nil {
		return Sending, err
	}
	return transmissionStatus(s), nil
}

// ClearInterrupts writes 1 to RX_DR, TX_DS and MAX_RT.
func (r *Radio) ClearInterrupts() error {
	return r.WriteRegister(RegStatus, byte(IRQMask))
}

// GetRetransmissionCount returns ARC_CNT from OBSERVE_TX.
func (r *Radio) GetRetransmissionCount() (int, error) {
	b, err := r.ReadRegister(RegObserveTx)
	return int(b & 0x0f), err
}

func (r *Radio) FifoStatus() (FIFO, error) {
	b, err := r.ReadRegister(RegFifoStatus)
	return FIFO(b), err
}

func (r *Radio) RxFifoEmpty() (bool, error) {
	f, err := r.FifoStatus()
	if err != nil {
		return false, err
	}
	return f.Has(RxEmpty), nil
}

// WaitIRQ blocks until the IRQ line falls or timeout expires. It returns
// false right away when the radio was opened without an IRQ pin.
func (r *Radio) WaitIRQ(timeout time.Duration) bool {
	if r.irq == nil {
		return false
	}
	if r.irq.Read() == gpio.Low {
		return true
	}
	return r.irq.WaitForEdge(timeout)
}
