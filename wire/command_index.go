package wire

import (
	"fmt"
)

// CommandType is the letter part of a command index.
type CommandType uint8

const (
	CommandUnknown CommandType = iota
	CommandLinear
	CommandRotate
	CommandVibrate
	CommandAuxiliary
	CommandDevice
)

// CommandTypeFromByte maps a type letter, case-insensitive, to its CommandType.
// Unknown letters map to CommandUnknown.
func CommandTypeFromByte(c byte) CommandType {
	switch c {
	case 'L', 'l':
		return CommandLinear
	case 'R', 'r':
		return CommandRotate
	case 'V', 'v':
		return CommandVibrate
	case 'A', 'a':
		return CommandAuxiliary
	case 'D', 'd':
		return CommandDevice
	default:
		return CommandUnknown
	}
}

// Byte returns the upper-case wire letter of t, or 0 for CommandUnknown.
func (t CommandType) Byte() byte {
	switch t {
	case CommandLinear:
		return 'L'
	case CommandRotate:
		return 'R'
	case CommandVibrate:
		return 'V'
	case CommandAuxiliary:
		return 'A'
	case CommandDevice:
		return 'D'
	default:
		return 0
	}
}

// IsAxis reports whether t addresses a motion axis.
func (t CommandType) IsAxis() bool {
	return t >= CommandLinear && t <= CommandAuxiliary
}

func (t CommandType) String() string {
	switch t {
	case CommandLinear:
		return "Linear"
	case CommandRotate:
		return "Rotate"
	case CommandVibrate:
		return "Vibrate"
	case CommandAuxiliary:
		return "Auxiliary"
	case CommandDevice:
		return "Device"
	default:
		return "Unknown"
	}
}

// MaxSlot is the highest slot number of a command index.
const MaxSlot = 9

// CommandIndex addresses one endpoint: a command type and a slot in [0, 9].
//
// CommandIndex is comparable and can be used as a map key. Indices order by
// type first, then by slot.
type CommandIndex struct {
	Type CommandType
	Slot int8
}

// Reserved device endpoints.
var (
	DeviceInfo        = CommandIndex{Type: CommandDevice, Slot: 0}
	DeviceProtocol    = CommandIndex{Type: CommandDevice, Slot: 1}
	DeviceEnumeration = CommandIndex{Type: CommandDevice, Slot: 2}
)

// NewCommandIndex returns a request side command index.
//
// It panics when t is CommandUnknown or slot is out of range, a request never
// carries an invalid index.
func NewCommandIndex(t CommandType, slot int) CommandIndex {
	idx := CommandIndex{Type: t, Slot: int8(slot)}
	if slot < 0 || slot > MaxSlot || !idx.Valid() {
		panic(fmt.Sprintf("wire: invalid command index (%s, %d)", t, slot))
	}
	return idx
}

// ParseCommandIndex parses a 2 character command index such as "L0" or "d2".
func ParseCommandIndex(s string) (CommandIndex, error) {
	if len(s) != 2 {
		return CommandIndex{}, fmt.Errorf("%w: %q", ErrInvalidCommandIndex, s)
	}
	t := CommandTypeFromByte(s[0])
	if t == CommandUnknown || s[1] < '0' || s[1] > '9' {
		return CommandIndex{}, fmt.Errorf("%w: %q", ErrInvalidCommandIndex, s)
	}
	return CommandIndex{Type: t, Slot: int8(s[1] - '0')}, nil
}

// MustParseCommandIndex is like ParseCommandIndex but panics on error.
func MustParseCommandIndex(s string) CommandIndex {
	idx, err := ParseCommandIndex(s)
	if err != nil {
		panic(err)
	}
	return idx
}

// Valid reports whether c has a known type and an in-range slot.
func (c CommandIndex) Valid() bool {
	return c.Type != CommandUnknown && c.Type <= CommandDevice && c.Slot >= 0 && c.Slot <= MaxSlot
}

// IsReserved reports whether c is one of the device endpoints consumed by
// the connection itself.
func (c CommandIndex) IsReserved() bool {
	return c == DeviceInfo || c == DeviceProtocol || c == DeviceEnumeration
}

// Key returns the ordering key of c.
func (c CommandIndex) Key() uint16 {
	return uint16(c.Type)<<8 | uint16(uint8(c.Slot))
}

// Less reports whether c orders before o.
func (c CommandIndex) Less(o CommandIndex) bool {
	return c.Key() < o.Key()
}

// Compare returns -1, 0 or +1, for use with slices.SortFunc.
func (c CommandIndex) Compare(o CommandIndex) int {
	switch a, b := c.Key(), o.Key(); {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// AppendTo appends the 2 byte wire form of c to b.
func (c CommandIndex) AppendTo(b []byte) []byte {
	return append(b, c.Type.Byte(), byte('0'+c.Slot))
}

func (c CommandIndex) String() string {
	if !c.Valid() {
		return fmt.Sprintf("?%d", c.Slot)
	}
	return string(c.AppendTo(make([]byte, 0, 2)))
}

// MarshalText implements encoding.TextMarshaler.
func (c CommandIndex) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: (%s, %d)", ErrInvalidCommandIndex, c.Type, c.Slot)
	}
	return c.AppendTo(nil), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CommandIndex) UnmarshalText(text []byte) error {
	idx, err := ParseCommandIndex(string(text))
	if err != nil {
		return err
	}
	*c = idx
	return nil
}
