package nrf24

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	ErrTransportTimeout = errors.New("nrf24: transport timeout")
	ErrMaxRetries       = errors.New("nrf24: max retransmissions reached")
	ErrNoData           = errors.New("nrf24: rx fifo empty")
	ErrPinNotFound      = errors.New("nrf24: pin not found")
)

var log = logrus.New()

// Address is a 5 byte pipe address.
type Address [AddressWidth]byte

func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4])
}

// Config describes how to reach the chip and its initial radio settings.
type Config struct {
	// SPIDev is the SPI port name passed to spireg.Open, e.g. "/dev/spidev0.0".
	SPIDev string
	// CEPin and CSNPin are gpioreg names. An empty CSNPin leaves framing to
	// the SPI controller's own chip-select.
	CEPin  string
	CSNPin string
	// IRQPin is optional; it enables WaitIRQ.
	IRQPin string

	Frequency physic.Frequency
	// Timeout bounds every bus transfer. Zero means the default of 100ms and
	// a negative value disables it. A transfer that times out may still be
	// running on the bus, so the radio fails every later command with
	// ErrTransportTimeout and must be recreated.
	Timeout time.Duration

	Channel uint8
	// PayloadSize zero means 32.
	PayloadSize int
	DataRate    DataRate
	OutputPower OutputPower

	Logger logrus.FieldLogger
}

func DefaultConfig() Config {
	return Config{
		SPIDev:      "/dev/spidev0.0",
		CEPin:       "GPIO25",
		Frequency:   8 * physic.MegaHertz,
		Timeout:     100 * time.Millisecond,
		Channel:     76,
		PayloadSize: MaxPayloadSize,
		DataRate:    DataRate2M,
		OutputPower: OutputPower0dBm,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SPIDev == "" {
		c.SPIDev = d.SPIDev
	}
	if c.CEPin == "" {
		c.CEPin = d.CEPin
	}
	if c.Frequency == 0 {
		c.Frequency = d.Frequency
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.PayloadSize == 0 {
		c.PayloadSize = d.PayloadSize
	}
	if c.Logger == nil {
		c.Logger = log
	}
	return c
}

// Radio is one nRF24L01(+) transceiver. It is not safe for concurrent use;
// callers sharing a Radio across goroutines must serialize every call.
type Radio struct {
	conn spi.Conn
	port spi.PortCloser
	ce   gpio.PinOut
	csn  gpio.PinOut
	irq  gpio.PinIn

	// ceLevel is the level last driven on CE.
	ceLevel gpio.Level
	timeout time.Duration
	// failed is set once a transfer times out; the bus may still be busy.
	failed error
	log     logrus.FieldLogger

	channel     uint8
	payloadSize int
	dataRate    DataRate
	outputPower OutputPower
}

// NewRadio opens the SPI port and pins named in c and initializes the chip.
func NewRadio(c Config) (*Radio, error) {
	c = c.withDefaults()

	if _, err := host.Init(); err != nil {
		return nil, err
	}

	if _, err := driverreg.Init(); err != nil {
		return nil, err
	}

	p, err := spireg.Open(c.SPIDev)
	if err != nil {
		return nil, err
	}

	conn, err := p.Connect(c.Frequency, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, err
	}

	ce := gpioreg.ByName(c.CEPin)
	if ce == nil {
		p.Close()
		return nil, fmt.Errorf("%w: ce %q", ErrPinNotFound, c.CEPin)
	}

	var csn gpio.PinOut
	if c.CSNPin != "" {
		pin := gpioreg.ByName(c.CSNPin)
		if pin == nil {
			p.Close()
			return nil, fmt.Errorf("%w: csn %q", ErrPinNotFound, c.CSNPin)
		}
		csn = pin
	}

	var irq gpio.PinIn
	if c.IRQPin != "" {
		pin := gpioreg.ByName(c.IRQPin)
		if pin == nil {
			p.Close()
			return nil, fmt.Errorf("%w: irq %q", ErrPinNotFound, c.IRQPin)
		}
		if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			p.Close()
			return nil, err
		}
		irq = pin
	}

	r, err := New(conn, ce, csn, c)
	if err != nil {
		p.Close()
		return nil, err
	}
	r.port = p
	r.irq = irq
	return r, nil
}

// New wraps an already connected SPI conn and CE/CSN lines, then runs
// Initialize with the channel and payload size from c. csn may be nil. Zero
// fields of c take their DefaultConfig values, except Channel and the pin
// names which New does not use.
func New(conn spi.Conn, ce, csn gpio.PinOut, c Config) (*Radio, error) {
	c = c.withDefaults()
	r := &Radio{
		conn:        conn,
		ce:          ce,
		csn:         csn,
		ceLevel:     gpio.Low,
		timeout:     c.Timeout,
		log:         c.Logger,
		dataRate:    c.DataRate,
		outputPower: c.OutputPower,
	}
	if err := r.Initialize(c.Channel, c.PayloadSize); err != nil {
		return nil, err
	}
	return r, nil
}

// Initialize brings the chip into a known state regardless of what it was
// doing before, then leaves it listening. On error the chip configuration
// is incomplete and the radio must not be used.
func (r *Radio) Initialize(channel uint8, payloadSize int) error {
	err := r.setCSN(gpio.High)
	if err != nil {
		return err
	}

	err = r.setCE(gpio.Low)
	if err != nil {
		return err
	}

	r.payloadSize = clamp(payloadSize, 1, MaxPayloadSize)

	err = r.softwareReset()
	if err != nil {
		return err
	}
	r.channel = defaultChannel

	err = r.SetChannel(channel)
	if err != nil {
		return err
	}

	for p := 0; p < NumPipes; p++ {
		err = r.WriteRegister(rxPayloadWidth(p), byte(r.payloadSize))
		if err != nil {
			return err
		}
	}

	err = r.SetRF(r.dataRate, r.outputPower)
	if err != nil {
		return err
	}

	err = r.WriteRegister(RegConfig, byte(baseConfig))
	if err != nil {
		return err
	}

	err = r.WriteRegister(RegEnAA, allPipes)
	if err != nil {
		return err
	}

	err = r.WriteRegister(RegEnRxAddr, allPipes)
	if err != nil {
		return err
	}

	err = r.WriteRegister(RegSetupRetr, retrDefault)
	if err != nil {
		return err
	}

	err = r.WriteRegister(RegDynPD, 0)
	if err != nil {
		return err
	}

	err = r.FlushTx()
	if err != nil {
		return err
	}

	err = r.FlushRx()
	if err != nil {
		return err
	}

	err = r.ClearInterrupts()
	if err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{
		"channel": r.channel,
		"payload": r.payloadSize,
		"rf":      rfSetup(r.dataRate, r.outputPower),
	}).Info("nrf24 initialized")

	return r.PowerUpRx()
}

// softwareReset writes every register back to its power-on value.
func (r *Radio) softwareReset() error {
	for _, d := range powerOnDefaults {
		if err := r.WriteRegisterMulti(d.reg, d.val...); err != nil {
			return err
		}
	}
	return nil
}

// SetChannel writes RF_CH when channel is in range and differs from the
// current one.
func (r *Radio) SetChannel(channel uint8) error {
	if channel > MaxChannel || channel == r.channel {
		return nil
	}
	if err := r.WriteRegister(RegRFCh, channel); err != nil {
		return err
	}
	r.channel = channel
	return nil
}

func (r *Radio) SetRF(dr DataRate, pwr OutputPower) error {
	r.dataRate = dr
	r.outputPower = pwr
	return r.WriteRegister(RegRFSetup, byte(rfSetup(dr, pwr)))
}

// PowerUpTx selects PTX and powers the chip up. CE must already be low.
func (r *Radio) PowerUpTx() error {
	if err := r.ClearInterrupts(); err != nil {
		return err
	}
	r.log.WithField("mode", ModeTx).Debug("power up")
	return r.WriteRegister(RegConfig, byte(baseConfig|PwrUp))
}

// PowerUpRx flushes the RX FIFO and starts listening.
func (r *Radio) PowerUpRx() error {
	err := r.setCE(gpio.Low)
	if err != nil {
		return err
	}

	err = r.FlushRx()
	if err != nil {
		return err
	}

	err = r.ClearInterrupts()
	if err != nil {
		return err
	}

	err = r.WriteRegister(RegConfig, byte(baseConfig|PwrUp|PrimRx))
	if err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{"mode": ModeRx, "channel": r.channel}).Debug("power up")
	return r.setCE(gpio.High)
}

// PowerDown clears PWR_UP and keeps the rest of CONFIG.
func (r *Radio) PowerDown() error {
	if err := r.setCE(gpio.Low); err != nil {
		return err
	}
	r.log.WithField("mode", ModePowerDown).Debug("power down")
	return r.WriteBit(RegConfig, byte(PwrUp), false)
}

// SetMyAddress sets the pipe 1 listening address. CE is held low while the
// address changes and raised again afterwards.
func (r *Radio) SetMyAddress(a Address) error {
	if err := r.setCE(gpio.Low); err != nil {
		return err
	}
	if err := r.WriteRegisterMulti(RegRxAddrP1, a[:]...); err != nil {
		return err
	}
	return r.setCE(gpio.High)
}

// SetTxAddress sets the destination address. Pipe 0 gets the same address
// so the auto-ack reply is accepted.
func (r *Radio) SetTxAddress(a Address) error {
	if err := r.WriteRegisterMulti(RegRxAddrP0, a[:]...); err != nil {
		return err
	}
	return r.WriteRegisterMulti(RegTxAddr, a[:]...)
}

func (r *Radio) Channel() uint8           { return r.channel }
func (r *Radio) PayloadSize() int         { return r.payloadSize }
func (r *Radio) DataRate() DataRate       { return r.dataRate }
func (r *Radio) OutputPower() OutputPower { return r.outputPower }

func (r *Radio) String() string {
	return fmt.Sprintf("nrf24{ch:%d payload:%d %s %s}", r.channel, r.payloadSize, r.dataRate, r.outputPower)
}

// Close powers the chip down and releases the SPI port if NewRadio opened it.
func (r *Radio) Close() error {
	err := r.PowerDown()
	if r.port != nil {
		if e := r.port.Close(); err == nil {
			err = e
		}
	}
	return err
}
