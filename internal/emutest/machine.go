package emutest

import "sync"

const (
	flagCarry    byte = 0x01
	flagZero     byte = 0x02
	flagUnused   byte = 0x20
	flagOverflow byte = 0x40
	flagNegative byte = 0x80
)

// machine is a 6502 core covering the opcodes the sample-program
// catalogue exercises. Unknown opcodes halt, same as BRK.
//
// mu serializes handler access: concurrent requests may target the
// same id.
type machine struct {
	mu sync.Mutex

	mem [65536]byte

	a, x, y byte
	pc      uint16
	sp      byte
	status  byte
	cycles  uint64
	halted  bool

	adcBroken bool
}

func newMachine(adcBroken bool) *machine {
	return &machine{sp: 0xFD, status: flagUnused, adcBroken: adcBroken}
}

func (m *machine) state() cpuState {
	return cpuState{
		A: m.a, X: m.x, Y: m.y,
		PC: m.pc, SP: m.sp, Status: m.status,
		Cycles: m.cycles, Halted: m.halted,
	}
}

func (m *machine) reset() {
	low := uint16(m.mem[0xFFFC])
	high := uint16(m.mem[0xFFFD])
	m.pc = high<<8 | low
	m.sp = 0xFD
	m.status = flagUnused
	m.a, m.x, m.y = 0, 0, 0
	m.cycles = 0
	m.halted = false
}

func (m *machine) fetch() byte {
	b := m.mem[m.pc]
	m.pc++
	return b
}

func (m *machine) fetchWord() uint16 {
	low := uint16(m.fetch())
	high := uint16(m.fetch())
	return high<<8 | low
}

func (m *machine) setFlag(flag byte, on bool) {
	if on {
		m.status |= flag
	} else {
		m.status &^= flag
	}
}

func (m *machine) setZN(value byte) {
	m.setFlag(flagZero, value == 0)
	m.setFlag(flagNegative, value&0x80 != 0)
}

func (m *machine) compare(register, operand byte) {
	m.setFlag(flagCarry, register >= operand)
	m.setZN(register - operand)
}

func (m *machine) branch(taken bool) {
	offset := int8(m.fetch())
	m.cycles += 2
	if taken {
		m.pc = uint16(int32(m.pc) + int32(offset))
		m.cycles++
	}
}

func (m *machine) step() {
	if m.halted {
		return
	}

	opcode := m.fetch()
	switch opcode {
	case 0xA9: // LDA #imm
		m.a = m.fetch()
		m.setZN(m.a)
		m.cycles += 2
	case 0xA2: // LDX #imm
		m.x = m.fetch()
		m.setZN(m.x)
		m.cycles += 2
	case 0xA0: // LDY #imm
		m.y = m.fetch()
		m.setZN(m.y)
		m.cycles += 2
	case 0x18: // CLC
		m.setFlag(flagCarry, false)
		m.cycles += 2
	case 0x69: // ADC #imm
		operand := m.fetch()
		carry := uint16(0)
		if m.status&flagCarry != 0 {
			carry = 1
		}
		sum := uint16(m.a) + uint16(operand) + carry
		if m.adcBroken {
			sum++
		}
		result := byte(sum)
		m.setFlag(flagCarry, sum > 0xFF)
		m.setFlag(flagOverflow, (m.a^result)&(operand^result)&0x80 != 0)
		m.a = result
		m.setZN(m.a)
		m.cycles += 2
	case 0x85: // STA zp
		m.mem[uint16(m.fetch())] = m.a
		m.cycles += 3
	case 0x8D: // STA abs
		m.mem[m.fetchWord()] = m.a
		m.cycles += 4
	case 0x8E: // STX abs
		m.mem[m.fetchWord()] = m.x
		m.cycles += 4
	case 0x99: // STA abs,Y
		m.mem[m.fetchWord()+uint16(m.y)] = m.a
		m.cycles += 5
	case 0xB9: // LDA abs,Y
		m.a = m.mem[m.fetchWord()+uint16(m.y)]
		m.setZN(m.a)
		m.cycles += 4
	case 0xCA: // DEX
		m.x--
		m.setZN(m.x)
		m.cycles += 2
	case 0xE8: // INX
		m.x++
		m.setZN(m.x)
		m.cycles += 2
	case 0xC8: // INY
		m.y++
		m.setZN(m.y)
		m.cycles += 2
	case 0xE0: // CPX #imm
		m.compare(m.x, m.fetch())
		m.cycles += 2
	case 0xC0: // CPY #imm
		m.compare(m.y, m.fetch())
		m.cycles += 2
	case 0xD0: // BNE
		m.branch(m.status&flagZero == 0)
	case 0xF0: // BEQ
		m.branch(m.status&flagZero != 0)
	default: // BRK and anything unimplemented
		m.halted = true
		m.cycles += 7
	}
}
