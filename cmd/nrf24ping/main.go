package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/NV4RE/nrf24"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
)

var log = logrus.New()

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "nrf24ping - send or listen for fixed size payloads on an nRF24L01(+).\n\tUsage:\n")
		flag.PrintDefaults()
	}
	c := nrf24.DefaultConfig()
	mode := flag.String("mode", "rx", "Operation: 'tx' sends -msg every -interval, 'rx' prints received payloads.")
	msg := flag.String("msg", "ping", "Payload sent in tx mode, zero padded to -size.")
	interval := flag.Duration("interval", time.Second, "Time between transmissions in tx mode.")
	addr := flag.String("addr", "e7e7e7e7e7", "Pipe address, 5 bytes hex.")
	channel := flag.Uint("ch", uint(c.Channel), "RF channel 0..125.")
	khz := flag.Int64("spi-khz", int64(c.Frequency/physic.KiloHertz), "SPI clock in kHz.")
	verbose := flag.Bool("v", false, "Debug logging.")
	flag.StringVar(&c.SPIDev, "spi", c.SPIDev, "SPI port.")
	flag.StringVar(&c.CEPin, "ce", c.CEPin, "CE pin name.")
	flag.StringVar(&c.CSNPin, "csn", "", "CSN pin name, empty to use the SPI controller chip-select.")
	flag.StringVar(&c.IRQPin, "irq", "", "IRQ pin name, empty to poll.")
	flag.IntVar(&c.PayloadSize, "size", c.PayloadSize, "Payload size 1..32.")
	flag.Parse()

	log.Formatter = new(logrus.TextFormatter)
	log.Out = os.Stdout
	log.Level = logrus.InfoLevel
	if *verbose {
		log.Level = logrus.DebugLevel
	}

	a, err := parseAddress(*addr)
	if err != nil {
		log.Fatal(err)
	}
	c.Channel = uint8(*channel)
	c.Frequency = physic.Frequency(*khz) * physic.KiloHertz
	c.Logger = log

	radio, err := nrf24.NewRadio(c)
	if err != nil {
		log.Fatal(err)
	}
	defer radio.Close()
	log.Info(radio)

	if err := radio.SetMyAddress(a); err != nil {
		log.Fatal(err)
	}
	if err := radio.SetTxAddress(a); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	switch *mode {
	case "tx":
		err = ping(ctx, radio, []byte(*msg), *interval)
	case "rx":
		err = listen(ctx, radio)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil && err != context.Canceled {
		log.Error(err)
	}
}

func ping(ctx context.Context, radio *nrf24.Radio, payload []byte, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		start := time.Now()
		err := radio.Send(ctx, payload, time.Millisecond)
		switch err {
		case nil:
			log.WithField("rtt", time.Since(start)).Info("ack")
		case nrf24.ErrMaxRetries:
			log.Warn("no ack")
		default:
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func listen(ctx context.Context, radio *nrf24.Radio) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !radio.WaitIRQ(100 * time.Millisecond) {
			time.Sleep(10 * time.Millisecond)
		}
		ok, err := radio.DataReady()
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		m, err := radio.ReadMessage()
		if errors.Is(err, nrf24.ErrNoData) {
			continue
		}
		if err != nil {
			return err
		}
		log.WithField("pipe", m.Pipe).Info(hex.EncodeToString(m.Data))
	}
}

func parseAddress(s string) (nrf24.Address, error) {
	var a nrf24.Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, err
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("address must be %d bytes, got %d", len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}
