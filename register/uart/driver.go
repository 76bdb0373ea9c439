// Package uart talks to a register bridge on the FPGA over a serial port.
//
// Frames are little-endian:
//
//	read:  'R' addr[4]           -> value[4]
//	write: 'W' addr[4] value[4]  -> 'K'
package uart

import (
	"errors"
	"fmt"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"log"
	"vled/register"
)

const driverName = "uart"

var (
	ErrNoBridgeFound = errors.New("uart: no register bridge found among serial ports")
	baudRates        = []int{
		921600,
		460800,
		230400,
		115200,
		57600,
		38400,
		19200,
		9600,
	}
)

type Driver struct{}

func (d *Driver) DisplayOrder() int {
	return 3
}

func (d *Driver) DisplayName() string {
	return "UART bridge"
}

func (d *Driver) DisplayDescription() string {
	return "Read and write registers through a serial register bridge"
}

// DetectPort returns the first USB serial port whose serial number matches.
func DetectPort(serialNumber string) (portName string, err error) {
	var ports []*enumerator.PortDetails

	ports, err = enumerator.GetDetailedPortsList()
	if err != nil {
		return
	}

	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		if serialNumber == "" || port.SerialNumber == serialNumber {
			log.Printf("uart: found %s (usb %s:%s serial %s)\n", port.Name, port.VID, port.PID, port.SerialNumber)
			portName = port.Name
			return
		}
	}

	return
}

// Open opens target.Name as the serial port, or detects one by the
// serial_number option when the name is empty. The baud option caps the
// rates tried; all common rates are tried in descending order.
func (d *Driver) Open(target register.Target) (register.Queue, error) {
	var err error

	portName := target.Name
	if portName == "" {
		portName, err = DetectPort(target.Option("serial_number", ""))
		if err != nil {
			return nil, fmt.Errorf("uart: %w", err)
		}
	}
	if portName == "" {
		return nil, ErrNoBridgeFound
	}

	baudRequest, err := target.IntOption("baud", baudRates[0])
	if err != nil {
		return nil, fmt.Errorf("uart: %w", err)
	}

	// Try all the common baud rates in descending order:
	f := serial.Port(nil)
	for _, baud := range baudRates {
		if baud > baudRequest {
			continue
		}

		f, err = serial.Open(portName, &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err == nil {
			log.Printf("uart: opened %s at %d baud\n", portName, baud)
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("uart: failed to open serial port at any baud rate: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("uart: no baud rate <= %d", baudRequest)
	}

	if err = f.SetDTR(true); err != nil {
		f.Close()
		return nil, fmt.Errorf("uart: failed to set DTR: %w", err)
	}

	return NewQueue(portName, &port{f}), nil
}

// port clears DTR before closing the serial port.
type port struct {
	serial.Port
}

func (p *port) Close() error {
	// ignore any errors since we're closing:
	_ = p.Port.SetDTR(false)

	if err := p.Port.Close(); err != nil {
		return fmt.Errorf("uart: could not close serial port: %w", err)
	}
	return nil
}

func init() {
	register.Register(driverName, &Driver{})
}
