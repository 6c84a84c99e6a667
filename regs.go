package nrf24

import (
	"strconv"

	"golang.org/x/exp/constraints"
)

// Status is the STATUS register. The chip clocks it out as the first byte
// of every command.
type Status byte

const (
	TxFull Status = 1 << iota // TX FIFO full.
	_
	_
	_
	MaxRT // Maximum number of TX retransmits reached.
	TxDS  // Data sent (ack received when auto-ack is on).
	RxDR  // Data ready in RX FIFO.

	// IRQMask covers the three write-1-to-clear interrupt flags.
	IRQMask = RxDR | TxDS | MaxRT
)

const rxPipeMask = 0x0e

// RxPipe returns the pipe number of the payload at the head of the RX FIFO,
// or -1 when the FIFO is empty.
func (s Status) RxPipe() int {
	n := int(s) & rxPipeMask
	if n == rxPipeMask {
		return -1
	}
	return n >> 1
}

func (s Status) Has(f Status) bool { return s&f != 0 }

func (s Status) String() string {
	return flags("RxDR+ TxDS+ MaxRT+ TxFull+ RxPipe:", 0x71, byte(s)) +
		strconv.Itoa(s.RxPipe())
}

// Cfg is the CONFIG register.
type Cfg byte

const (
	PrimRx    Cfg = 1 << iota // 1: PRX, 0: PTX.
	PwrUp                     // 1: power up, 0: power down.
	CRCO                      // CRC scheme 0: one byte, 1: two bytes.
	EnCRC                     // Enable CRC.
	MaskMaxRT                 // Mask MAX_RT on the IRQ line.
	MaskTxDS                  // Mask TX_DS on the IRQ line.
	MaskRxDR                  // Mask RX_DR on the IRQ line.
)

func (c Cfg) Has(f Cfg) bool { return c&f != 0 }

func (c Cfg) String() string {
	return flags("Mask(RxDR+ TxDS+ MaxRT+) EnCRC+ CRCO+ PwrUp+ PrimRx+", 0x7f, byte(c))
}

// FIFO is the FIFO_STATUS register.
type FIFO byte

const (
	RxEmpty FIFO = 1 << iota
	RxFull
	_
	_
	TxEmpty
	TxFifoFull
	TxReuse
)

func (f FIFO) Has(flag FIFO) bool { return f&flag != 0 }

func (f FIFO) String() string {
	return flags("TxReuse+ TxFull+ TxEmpty+ RxFull+ RxEmpty+", 0x73, byte(f))
}

// RFSetup is the RF_SETUP register.
type RFSetup byte

const (
	LNAHCurr RFSetup = 1 << iota
	_
	_
	DRHigh // 2 Mbps.
	PLLLock
	DRLow // 250 kbps.
	_
	ContWave

	rfPwrShift      = 1
	rfPwrMask  byte = 0x06
)

func (rf RFSetup) DataRate() DataRate {
	switch {
	case rf&DRLow != 0:
		return DataRate250k
	case rf&DRHigh != 0:
		return DataRate2M
	}
	return DataRate1M
}

func (rf RFSetup) OutputPower() OutputPower {
	return OutputPowerM18dBm - OutputPower((byte(rf)&rfPwrMask)>>rfPwrShift)
}

func (rf RFSetup) String() string {
	return flags("Wave+ DRLow+ Lock+ DRHigh+ LNAHC+", 0xb9, byte(rf)) +
		" " + rf.DataRate().String() + " " + rf.OutputPower().String()
}

// DataRate zero value is 2 Mbps, the rate the chip is initialized with.
type DataRate byte

const (
	DataRate2M DataRate = iota
	DataRate1M
	DataRate250k
)

func (d DataRate) String() string {
	switch d {
	case DataRate1M:
		return "1Mbps"
	case DataRate2M:
		return "2Mbps"
	case DataRate250k:
		return "250kbps"
	}
	return "unknown"
}

// OutputPower counts 6 dB steps below 0 dBm. RF_PWR encodes it inverted,
// 3 being the strongest.
type OutputPower byte

const (
	OutputPower0dBm OutputPower = iota
	OutputPowerM6dBm
	OutputPowerM12dBm
	OutputPowerM18dBm
)

func (p OutputPower) String() string {
	if p > OutputPowerM18dBm {
		return "unknown"
	}
	return strconv.Itoa(-6*int(p)) + "dBm"
}

// rfSetup encodes data rate and output power into one RF_SETUP value.
func rfSetup(dr DataRate, pwr OutputPower) RFSetup {
	var rf RFSetup
	switch dr {
	case DataRate2M:
		rf |= DRHigh
	case DataRate250k:
		rf |= DRLow
	}
	pwr = clamp(pwr, OutputPower0dBm, OutputPowerM18dBm)
	return rf | RFSetup((byte(OutputPowerM18dBm-pwr)<<rfPwrShift)&rfPwrMask)
}

// withBits returns old with mask set when on is true, cleared otherwise.
func withBits(old, mask byte, on bool) byte {
	if on {
		return old | mask
	}
	return old &^ mask
}

func clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// flags renders the bits selected by mask as +/- markers in the template f,
// most significant bit first.
func flags(f string, mask, b byte) string {
	buf := make([]byte, len(f))
	m := byte(0x80)
	for i := range buf {
		if f[i] != '+' {
			buf[i] = f[i]
			continue
		}
		for mask&m == 0 {
			m >>= 1
		}
		if b&m == 0 {
			buf[i] = '-'
		} else {
			buf[i] = '+'
		}
		m >>= 1
	}
	return string(buf)
}
