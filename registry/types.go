package registry

import "fmt"

// PropertyType is the wire type of a property, identified by one character
// in the enumeration document.
type PropertyType byte

const (
	TypeUnknown PropertyType = 0
	TypeUint32  PropertyType = 'u'
	TypeInt32   PropertyType = 'i'
	TypeUint64  PropertyType = 'U'
	TypeInt64   PropertyType = 'I'
	TypeFloat32 PropertyType = 'F'
	TypeFloat64 PropertyType = 'D'
	TypeString  PropertyType = 'S'
	TypeObject  PropertyType = 'O' // UBJSON document
)

// ParsePropertyType maps a schema type character to its PropertyType.
func ParsePropertyType(c byte) (PropertyType, bool) {
	switch t := PropertyType(c); t {
	case TypeUint32, TypeInt32, TypeUint64, TypeInt64, TypeFloat32, TypeFloat64, TypeString, TypeObject:
		return t, true
	default:
		return TypeUnknown, false
	}
}

// IsIntegral reports whether t is one of the integer types.
func (t PropertyType) IsIntegral() bool {
	return t == TypeUint32 || t == TypeInt32 || t == TypeUint64 || t == TypeInt64
}

// IsFloating reports whether t is one of the floating point types.
func (t PropertyType) IsFloating() bool {
	return t == TypeFloat32 || t == TypeFloat64
}

// IsNumeric reports whether t is integral or floating.
func (t PropertyType) IsNumeric() bool {
	return t.IsIntegral() || t.IsFloating()
}

// Size returns the payload size of fixed width types, 0 otherwise.
func (t PropertyType) Size() int {
	switch t {
	case TypeUint32, TypeInt32, TypeFloat32:
		return 4
	case TypeUint64, TypeInt64, TypeFloat64:
		return 8
	default:
		return 0
	}
}

func (t PropertyType) String() string {
	switch t {
	case TypeUint32:
		return "UInt32"
	case TypeInt32:
		return "Int32"
	case TypeUint64:
		return "UInt64"
	case TypeInt64:
		return "Int64"
	case TypeFloat32:
		return "FP32"
	case TypeFloat64:
		return "FP64"
	case TypeString:
		return "String"
	case TypeObject:
		return "UBJson"
	default:
		return "Unknown"
	}
}

// Interpretation tells how a property value is meant to be read.
type Interpretation uint8

const (
	InterpNormal Interpretation = iota
	InterpEnum
	InterpBoolean
	InterpBitfield
	InterpObservations
)

func (i Interpretation) String() string {
	switch i {
	case InterpNormal:
		return "Normal"
	case InterpEnum:
		return "Enum"
	case InterpBoolean:
		return "Boolean"
	case InterpBitfield:
		return "Bitfield"
	case InterpObservations:
		return "Observations"
	default:
		return fmt.Sprintf("Interpretation(%d)", uint8(i))
	}
}

// DisplayType is the device's presentation hint for a property.
type DisplayType uint8

const (
	DisplayDefault        DisplayType = 0
	DisplayTextBox        DisplayType = 1
	DisplayDragBox        DisplayType = 2
	DisplayPressButton    DisplayType = 11
	DisplayToggleButton   DisplayType = 12
	DisplayCheckboxButton DisplayType = 13
	DisplayRadioButton    DisplayType = 21
	DisplayComboBox       DisplayType = 22
	DisplaySliderBox      DisplayType = 23
	DisplayListBox        DisplayType = 24
	DisplayPlot           DisplayType = 91
)

func (d DisplayType) String() string {
	switch d {
	case DisplayDefault:
		return "Default"
	case DisplayTextBox:
		return "TextBox"
	case DisplayDragBox:
		return "DragBox"
	case DisplayPressButton:
		return "PressButton"
	case DisplayToggleButton:
		return "ToggleButton"
	case DisplayCheckboxButton:
		return "CheckboxButton"
	case DisplayRadioButton:
		return "RadioButton"
	case DisplayComboBox:
		return "ComboBox"
	case DisplaySliderBox:
		return "SliderBox"
	case DisplayListBox:
		return "ListBox"
	case DisplayPlot:
		return "Plot"
	default:
		return fmt.Sprintf("DisplayType(%d)", uint8(d))
	}
}

// EnumEntry maps an enum key to its label.
type EnumEntry struct {
	Key   uint64
	Label string
}

// BitfieldEntry maps a single bit mask to its label.
type BitfieldEntry struct {
	Mask  uint64
	Label string
}

// ObservationAxes names the axes of an observations property. Each sample
// is an x value followed by one value per y axis.
type ObservationAxes struct {
	X string
	Y []string
}
