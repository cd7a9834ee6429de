package ftdi

// MPSSE command opcodes used by this package.
const (
	SetBitsLow     byte = 0x80
	GetBitsLow     byte = 0x81
	SetBitsHigh    byte = 0x82
	GetBitsHigh    byte = 0x83
	LoopbackOff    byte = 0x85
	TCKDivisor     byte = 0x86
	SendImmediate  byte = 0x87
	DisableDiv5    byte = 0x8A
	Disable3Phase  byte = 0x8D
	DisableAdaptCK byte = 0x97

	// Data shifting, LSB first, write on falling edge, read on rising edge.
	clockTMSOut   byte = 0x4B
	clockTMSInOut byte = 0x6B
	clockBytesIO  byte = 0x39
	clockBitsIO   byte = 0x3B
)

// Pin bits within one 8-bit MPSSE group.
const (
	Pin0 uint8 = 1 << iota
	Pin1
	Pin2
	Pin3
	Pin4
	Pin5
	Pin6
	Pin7
)

// MPSSE serial engine pins on the low group.
const (
	PinSK = Pin0 // TCK
	PinDO = Pin1 // TDI
	PinDI = Pin2 // TDO
	PinCS = Pin3 // TMS
)

// MPSSE base clock of the high speed chips with divide-by-5 disabled.
const baseClock = 60_000_000
