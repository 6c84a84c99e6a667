package nrf24

import "periph.io/x/conn/v3/gpio"

// ChipMode is the operating mode that follows from CONFIG and the CE line.
// The chip has no mode register; the driver never stores one either.
type ChipMode byte

const (
	ModePowerDown ChipMode = iota
	ModeStandby
	ModeTx
	ModeRx
)

func (m ChipMode) String() string {
	switch m {
	case ModePowerDown:
		return "power-down"
	case ModeStandby:
		return "standby-I"
	case ModeTx:
		return "tx"
	case ModeRx:
		return "rx"
	}
	return "unknown"
}

// ModeOf derives the chip mode from the CONFIG register and the CE level.
func ModeOf(cfg Cfg, ce gpio.Level) ChipMode {
	switch {
	case !cfg.Has(PwrUp):
		return ModePowerDown
	case ce == gpio.Low:
		return ModeStandby
	case cfg.Has(PrimRx):
		return ModeRx
	}
	return ModeTx
}

// Mode reads CONFIG and combines it with the CE level last driven.
func (r *Radio) Mode() (ChipMode, error) {
	cfg, err := r.ReadRegister(RegConfig)
	if err != nil {
		return ModePowerDown, err
	}
	return ModeOf(Cfg(cfg), r.ceLevel), nil
}
