package domain

import "fmt"

// Status register bits of the 6502.
const (
	FlagCarry    byte = 0x01
	FlagZero     byte = 0x02
	FlagOverflow byte = 0x40
	FlagNegative byte = 0x80
)

// CPUSnapshot is the observable register/flags/cycle/halted state the
// service returns after a step. It is a point-in-time value; the client
// never mutates one, only compares successive snapshots.
type CPUSnapshot struct {
	A      byte   `json:"a"`
	X      byte   `json:"x"`
	Y      byte   `json:"y"`
	PC     uint16 `json:"pc"`
	SP     byte   `json:"sp"`
	Status byte   `json:"status"`
	Cycles uint64 `json:"cycles"`
	Halted bool   `json:"halted"`
}

func (s CPUSnapshot) Carry() bool    { return s.Status&FlagCarry != 0 }
func (s CPUSnapshot) Zero() bool     { return s.Status&FlagZero != 0 }
func (s CPUSnapshot) Negative() bool { return s.Status&FlagNegative != 0 }

func (s CPUSnapshot) String() string {
	return fmt.Sprintf("A=$%02X X=$%02X Y=$%02X PC=$%04X SP=$%02X P=$%02X cycles=%d halted=%v",
		s.A, s.X, s.Y, s.PC, s.SP, s.Status, s.Cycles, s.Halted)
}

// AddressSpaceSize is the emulated 64KiB address space.
const AddressSpaceSize = 1 << 16

// CheckMemoryRange rejects regions that would run past the end of the
// address space before any request is sent.
func CheckMemoryRange(address uint16, length int) error {
	if length <= 0 {
		return NewFailure(FailureOutOfRange, "length %d must be positive", length)
	}
	if int(address)+length > AddressSpaceSize {
		return NewFailure(FailureOutOfRange, "region $%04X+%d exceeds the 64KiB address space", address, length)
	}
	return nil
}
