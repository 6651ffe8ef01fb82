package relay

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

type fakePort struct {
	bytes.Buffer
	writeErr error
	closed   int
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.Buffer.Write(b)
}

func (p *fakePort) Close() error {
	p.closed++
	return nil
}

func TestEncodeFrame(t *testing.T) {
	tests := []struct {
		ch     int
		on     bool
		expect []byte
	}{
		{1, true, []byte{0xA0, 0x01, 0x01, 0xA2}},
		{1, false, []byte{0xA0, 0x01, 0x00, 0xA1}},
		{2, true, []byte{0xA0, 0x02, 0x01, 0xA3}},
		{4, false, []byte{0xA0, 0x04, 0x00, 0xA4}},
	}

	for _, tc := range tests {
		got, err := EncodeFrame(tc.ch, tc.on)
		require.NoError(t, err)
		assert.Equal(t, tc.expect, got, "channel %d on=%v", tc.ch, tc.on)
	}

	for _, ch := range []int{0, 9, -1} {
		_, err := EncodeFrame(ch, true)
		assert.ErrorIs(t, err, ErrInvalidChannel)
	}
}

func TestPortOptions_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		in      PortOptions
		expect  PortOptions
		wantErr bool
	}{
		{"defaults", PortOptions{}, PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"even", PortOptions{BaudRate: 115200, Parity: " even "}, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "E"}, false},
		{"odd two stop", PortOptions{StopBits: 2, Parity: "o"}, PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 2, Parity: "O"}, false},
		{"bad data bits", PortOptions{DataBits: 9}, PortOptions{}, true},
		{"bad stop bits", PortOptions{StopBits: 3}, PortOptions{}, true},
		{"bad parity", PortOptions{Parity: "mark"}, PortOptions{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.in.Normalize()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expect, got)
		})
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{StopBits: 2, Parity: "E"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 9600, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)
}

func TestSerialSwitch(t *testing.T) {
	port := &fakePort{}
	sw := NewSerialSwitch(port, 1)

	require.NoError(t, sw.Set(true))
	require.NoError(t, sw.Set(false))
	assert.Equal(t, []byte{0xA0, 0x01, 0x01, 0xA2, 0xA0, 0x01, 0x00, 0xA1}, port.Bytes())

	require.NoError(t, sw.Close())
	require.NoError(t, sw.Close())
	assert.Equal(t, 1, port.closed)
	assert.ErrorIs(t, sw.Set(true), ErrSwitchClosed)
}

func TestSerialSwitch_WriteError(t *testing.T) {
	boom := errors.New("device unplugged")
	sw := NewSerialSwitch(&fakePort{writeErr: boom}, 3)
	assert.ErrorIs(t, sw.Set(true), boom)
}

func TestOpenSerialSwitch_Errors(t *testing.T) {
	_, err := OpenSerialSwitch("/dev/does-not-exist", PortOptions{}, 0)
	assert.ErrorIs(t, err, ErrInvalidChannel)

	_, err = OpenSerialSwitch("/dev/does-not-exist", PortOptions{Parity: "x"}, 1)
	assert.Error(t, err)

	_, err = OpenSerialSwitch("/dev/roomwatch-no-such-port", PortOptions{}, 1)
	assert.ErrorIs(t, err, ErrPortUnavailable)
}
