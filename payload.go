package nrf24

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
)

type Message struct {
	Data []byte
	Pipe int
}

// Transmit loads one payload and lets the chip send it. It does not wait
// for completion; poll GetTransmissionStatus. data is zero padded or
// truncated to the payload size.
func (r *Radio) Transmit(data []byte) error {
	buf := make([]byte, r.payloadSize)
	copy(buf, data)

	err := r.setCE(gpio.Low)
	if err != nil {
		return err
	}

	err = r.PowerUpTx()
	if err != nil {
		return err
	}

	err = r.FlushTx()
	if err != nil {
		return err
	}

	err = r.WritePayload(buf)
	if err != nil {
		return err
	}

	return r.setCE(gpio.High)
}

// Receive reads one payload into buf and clears RX_DR. Call DataReady
// first. It returns the number of bytes copied into buf.
func (r *Radio) Receive(buf []byte) (int, error) {
	b, err := r.ReadPayload(r.payloadSize)
	if err != nil {
		return 0, err
	}
	n := copy(buf, b)
	return n, r.WriteRegister(RegStatus, byte(RxDR))
}

// DataReady reports RX_DR, falling back to the RX FIFO state because the
// flag is not always in sync with the FIFO.
func (r *Radio) DataReady() (bool, error) {
	s, err := r.GetStatus()
	if err != nil {
		return false, err
	}
	if s.Has(RxDR) {
		return true, nil
	}
	empty, err := r.RxFifoEmpty()
	if err != nil {
		return false, err
	}
	return !empty, nil
}

// ReadMessage reads the payload at the head of the RX FIFO together with
// the pipe it arrived on. With the FIFO empty it clears a stale RX_DR so
// DataReady stops reporting data, and returns ErrNoData.
func (r *Radio) ReadMessage() (*Message, error) {
	s, err := r.GetStatus()
	if err != nil {
		return nil, err
	}
	pipe := s.RxPipe()
	if pipe < 0 {
		if s.Has(RxDR) {
			if err := r.WriteRegister(RegStatus, byte(RxDR)); err != nil {
				return nil, err
			}
		}
		return nil, ErrNoData
	}
	m := &Message{Data: make([]byte, r.payloadSize), Pipe: pipe}
	if _, err := r.Receive(m.Data); err != nil {
		return nil, err
	}
	return m, nil
}

// Send transmits data and polls every poll interval until the chip reports
// success or failure, then returns to listening. A lost payload is flushed
// and reported as ErrMaxRetries.
func (r *Radio) Send(ctx context.Context, data []byte, poll time.Duration) error {
	err := r.Transmit(data)
	if err != nil {
		return err
	}

	st, err := r.waitTransmission(ctx, poll)
	if err == nil && st == Lost {
		arc, err := r.GetRetransmissionCount()
		if err != nil {
			return err
		}
		r.log.WithFields(logrus.Fields{"retries": arc, "channel": r.channel}).Warn("payload lost")
		err = r.FlushTx()
		if err != nil {
			return err
		}
		err = ErrMaxRetries
	}

	if e := r.PowerUpRx(); err == nil {
		err = e
	}
	return err
}

func (r *Radio) waitTransmission(ctx context.Context, poll time.Duration) (TransmissionStatus, error) {
	if poll <= 0 {
		poll = time.Millisecond
	}
	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		st, err := r.GetTransmissionStatus()
		if err != nil || st != Sending {
			return st, err
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-t.C:
		}
	}
}
