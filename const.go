package nrf24

type Register byte
type Command byte

const (
	RegConfig     Register = 0x00
	RegEnAA       Register = 0x01
	RegEnRxAddr   Register = 0x02
	RegSetupAW    Register = 0x03
	RegSetupRetr  Register = 0x04
	RegRFCh       Register = 0x05
	RegRFSetup    Register = 0x06
	RegStatus     Register = 0x07
	RegObserveTx  Register = 0x08
	RegRPD        Register = 0x09
	RegRxAddrP0   Register = 0x0a
	RegRxAddrP1   Register = 0x0b
	RegRxAddrP2   Register = 0x0c
	RegRxAddrP3   Register = 0x0d
	RegRxAddrP4   Register = 0x0e
	RegRxAddrP5   Register = 0x0f
	RegTxAddr     Register = 0x10
	RegRxPwP0     Register = 0x11
	RegRxPwP1     Register = 0x12
	RegRxPwP2     Register = 0x13
	RegRxPwP3     Register = 0x14
	RegRxPwP4     Register = 0x15
	RegRxPwP5     Register = 0x16
	RegFifoStatus Register = 0x17
	RegDynPD      Register = 0x1c
	RegFeature    Register = 0x1d
)

const (
	CmdReadRegister  Command = 0x00
	CmdWriteRegister Command = 0x20
	CmdReadPayload   Command = 0x61
	CmdWritePayload  Command = 0xa0
	CmdFlushTx       Command = 0xe1
	CmdFlushRx       Command = 0xe2
	CmdNop           Command = 0xff
)

// registerMask selects the address bits of a register command.
const registerMask = 0x1f

const (
	MaxChannel     uint8 = 125
	MaxPayloadSize       = 32
	AddressWidth         = 5
	NumPipes             = 6

	// baseConfig is CONFIG with CRC enabled (1 byte) and all interrupts
	// reflected on the IRQ line.
	baseConfig = EnCRC
	// allPipes enables auto-ack and RX addresses on P0..P5.
	allPipes byte = 0x3f
	// retrDefault is 1000us retransmit delay, 15 retries.
	retrDefault byte = 0x4f
)

// resetValue is a register with its power-on value. Address registers carry
// five bytes, every other register one.
type resetValue struct {
	reg Register
	val []byte
}

// powerOnDefaults lists the documented reset values in the order they are
// written by a software reset.
var powerOnDefaults = []resetValue{
	{RegConfig, []byte{0x08}},
	{RegEnAA, []byte{0x3f}},
	{RegEnRxAddr, []byte{0x03}},
	{RegSetupAW, []byte{0x03}},
	{RegSetupRetr, []byte{0x03}},
	{RegRFCh, []byte{defaultChannel}},
	{RegRFSetup, []byte{0x0e}},
	{RegStatus, []byte{0x0e}},
	{RegObserveTx, []byte{0x00}},
	{RegRPD, []byte{0x00}},
	{RegRxAddrP0, []byte{0xe7, 0xe7, 0xe7, 0xe7, 0xe7}},
	{RegRxAddrP1, []byte{0xc2, 0xc2, 0xc2, 0xc2, 0xc2}},
	{RegRxAddrP2, []byte{0xc3}},
	{RegRxAddrP3, []byte{0xc4}},
	{RegRxAddrP4, []byte{0xc5}},
	{RegRxAddrP5, []byte{0xc6}},
	{RegTxAddr, []byte{0xe7, 0xe7, 0xe7, 0xe7, 0xe7}},
	{RegRxPwP0, []byte{0x00}},
	{RegRxPwP1, []byte{0x00}},
	{RegRxPwP2, []byte{0x00}},
	{RegRxPwP3, []byte{0x00}},
	{RegRxPwP4, []byte{0x00}},
	{RegRxPwP5, []byte{0x00}},
	{RegFifoStatus, []byte{0x11}},
	{RegDynPD, []byte{0x00}},
	{RegFeature, []byte{0x00}},
}

const defaultChannel uint8 = 0x02

// rxPayloadWidth returns the RX_PW register of pipe p.
func rxPayloadWidth(p int) Register {
	return RegRxPwP0 + Register(p)
}
