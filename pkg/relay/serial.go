package relay

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// PortOptions describes the serial line parameters of the relay board.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and fills defaults for unset values.
// LCUS boards talk 9600 8N1.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 9600
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("relay: invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("relay: invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("relay: unsupported parity %q: expected N, E, or O", opts.Parity)
	}

	return opts, nil
}

// SerialMode converts the options into the mode go.bug.st/serial opens with.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}

	return mode, nil
}

// lcusHeader starts every LCUS command frame.
const lcusHeader = 0xA0

// EncodeFrame builds the 4-byte LCUS command that sets channel ch:
// A0 <ch> <state> <checksum>, checksum being the low byte of the sum.
func EncodeFrame(ch int, on bool) ([]byte, error) {
	if ch < 1 || ch > 8 {
		return nil, fmt.Errorf("%w: %d (want 1-8)", ErrInvalidChannel, ch)
	}
	var state byte
	if on {
		state = 0x01
	}
	sum := byte(lcusHeader + ch + int(state))
	return []byte{lcusHeader, byte(ch), state, sum}, nil
}

// SerialSwitch drives one channel of an LCUS-type USB relay board.
type SerialSwitch struct {
	channel int

	mu     sync.Mutex
	port   io.WriteCloser
	closed bool
}

// OpenSerialSwitch opens the relay board at path.
func OpenSerialSwitch(path string, opts PortOptions, channel int) (*SerialSwitch, error) {
	if _, err := EncodeFrame(channel, false); err != nil {
		return nil, err
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPortUnavailable, path, err)
	}
	return NewSerialSwitch(port, channel), nil
}

// NewSerialSwitch wraps an already open port.
func NewSerialSwitch(port io.WriteCloser, channel int) *SerialSwitch {
	return &SerialSwitch{port: port, channel: channel}
}

// Set writes the on/off frame for the configured channel.
func (s *SerialSwitch) Set(on bool) error {
	frame, err := EncodeFrame(s.channel, on)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSwitchClosed
	}
	if _, err := s.port.Write(frame); err != nil {
		return fmt.Errorf("relay: write channel %d: %w", s.channel, err)
	}
	return nil
}

// Close releases the port.
func (s *SerialSwitch) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.port.Close()
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
