package application

// LoadAddress is where every catalogue program is placed; the reset
// vector is pointed here before execution.
const LoadAddress = 0x8000

type Program struct {
	Name  string
	Bytes []byte
}

// Catalogue is the fixed set of 6502 sample programs the verifier and
// the stress phase drive.
var Catalogue = []Program{
	{
		Name: "arithmetic",
		Bytes: []byte{
			0xA9, 0x10, // LDA #$10
			0x18,       // CLC
			0x69, 0x05, // ADC #$05
			0x85, 0x00, // STA $00
			0x00, // BRK
		},
	},
	{
		Name: "simple-add",
		Bytes: []byte{
			0xA9, 0x05, // LDA #$05
			0x69, 0x03, // ADC #$03
			0x8D, 0x00, 0x60, // STA $6000
			0x00, // BRK
		},
	},
	{
		Name: "countdown-loop",
		Bytes: []byte{
			0xA2, 0x0A, // LDX #$0A
			0xCA,       // DEX
			0xD0, 0xFD, // BNE -3
			0x8E, 0x01, 0x60, // STX $6001
			0x00, // BRK
		},
	},
	{
		Name: "count-up-loop",
		Bytes: []byte{
			0xA2, 0x00, // LDX #$00
			0xE8,       // INX
			0xE0, 0x05, // CPX #$05
			0xD0, 0xFB, // BNE -5
			0x00, // BRK
		},
	},
	{
		Name: "memory-copy",
		Bytes: []byte{
			0xA0, 0x00, // LDY #$00
			0xB9, 0x00, 0x80, // LDA $8000,Y
			0x99, 0x00, 0x60, // STA $6000,Y
			0xC8,       // INY
			0xC0, 0x08, // CPY #$08
			0xD0, 0xF6, // BNE -10
			0x00, // BRK
		},
	},
}

// ProgramByName looks a catalogue program up by its name.
func ProgramByName(name string) (Program, bool) {
	for _, program := range Catalogue {
		if program.Name == name {
			return program, true
		}
	}
	return Program{}, false
}
