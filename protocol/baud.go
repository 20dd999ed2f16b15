package protocol

import "fmt"

// Baud-rate register values understood by the firmware
const (
	BAUD_IDX_9600   = 0x00
	BAUD_IDX_19200  = 0x01
	BAUD_IDX_38400  = 0x02
	BAUD_IDX_57600  = 0x03
	BAUD_IDX_115200 = 0x04
	BAUD_IDX_230400 = 0x05 // macOS limit
	BAUD_IDX_460800 = 0x06
	BAUD_IDX_921600 = 0x07 // Windows limit
)

// DefaultBaudRate is the rate the device boots at; the handshake is
// always sent at this rate before switching to the streaming rate.
const DefaultBaudRate = 9600

// BaudRate converts a baud-rate register value to bits per second.
func BaudRate(idx byte) (int, error) {
	switch idx {
	case BAUD_IDX_9600:
		return 9600, nil
	case BAUD_IDX_19200:
		return 19200, nil
	case BAUD_IDX_38400:
		return 38400, nil
	case BAUD_IDX_57600:
		return 57600, nil
	case BAUD_IDX_115200:
		return 115200, nil
	case BAUD_IDX_230400:
		return 230400, nil
	case BAUD_IDX_460800:
		return 460800, nil
	case BAUD_IDX_921600:
		return 921600, nil
	}
	return 0, fmt.Errorf("invalid baud rate register value 0x%02x", idx)
}

// BaudIndex converts a streaming baud rate to its register value.
// Only the high-speed rates are accepted on this path: the device never
// streams at its boot rate.
func BaudIndex(rate int) (byte, error) {
	switch rate {
	case 115200:
		return BAUD_IDX_115200, nil
	case 230400:
		return BAUD_IDX_230400, nil
	case 460800:
		return BAUD_IDX_460800, nil
	case 921600:
		return BAUD_IDX_921600, nil
	}
	return 0, fmt.Errorf("unsupported streaming baud rate %d", rate)
}
