package transport

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
)

// OS-specific fallback ports, returned when no candidate opens.
const (
	fallbackWindows = "COM4"
	fallbackDarwin  = "/dev/cu.usbserial-110"
	fallbackLinux   = "/dev/ttyUSB0"
)

// CandidatePorts returns the device paths worth probing on the given
// OS: numbered COM ports on Windows, the usual USB-serial names on
// macOS and Linux.
func CandidatePorts(goos string) []string {
	switch goos {
	case "windows":
		ports := make([]string, 0, 20)
		for i := 1; i <= 20; i++ {
			ports = append(ports, fmt.Sprintf("COM%d", i))
		}
		return ports
	case "darwin":
		return []string{
			"/dev/cu.usbserial-110", "/dev/cu.usbserial-111", "/dev/cu.usbserial-112",
			"/dev/cu.usbserial-10", "/dev/cu.usbserial-11", "/dev/cu.usbserial-12",
			"/dev/cu.usbserial-210", "/dev/cu.usbserial-211", "/dev/cu.usbserial-212",
			"/dev/tty.usbserial-110", "/dev/tty.usbserial-111", "/dev/tty.usbserial-112",
			"/dev/tty.usbserial-210", "/dev/tty.usbserial-211", "/dev/tty.usbserial-212",
		}
	default:
		return []string{
			"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyUSB2",
			"/dev/ttyACM0", "/dev/ttyACM1", "/dev/ttyACM2",
		}
	}
}

// FallbackPort returns the hard-coded default port for the given OS.
func FallbackPort(goos string) string {
	switch goos {
	case "windows":
		return fallbackWindows
	case "darwin":
		return fallbackDarwin
	default:
		return fallbackLinux
	}
}

// Resolve picks the serial port to use. An explicit port is returned
// unchanged; the later open call validates it. Otherwise each candidate
// is probed with an open/close cycle and the first one that opens wins.
// Resolve always returns a usable string: when nothing opens it falls
// back to the OS default and leaves failure to the session open.
func Resolve(explicit string, open Opener, log zerolog.Logger) string {
	if explicit != "" {
		log.Info().Str("port", explicit).Msg("using user-specified port")
		return explicit
	}
	return resolveForOS(runtime.GOOS, open, log)
}

func resolveForOS(goos string, open Opener, log zerolog.Logger) string {
	for _, name := range CandidatePorts(goos) {
		port, err := open(name, DefaultProbeBaud)
		if err != nil {
			log.Debug().Str("port", name).Err(err).Msg("probe failed")
			continue
		}
		port.Close()
		log.Info().Str("port", name).Msg("found available port")
		return name
	}
	fallback := FallbackPort(goos)
	log.Warn().Str("port", fallback).Msg("no available ports found, using default")
	return fallback
}

// DefaultProbeBaud is the rate used for open/close probing; the device
// boots at this rate, so a successful probe leaves it undisturbed.
const DefaultProbeBaud = 9600
