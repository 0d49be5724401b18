package wire

import (
	"strconv"
)

// RequestOp is the kind of a request record.
type RequestOp uint8

const (
	OpAxisUpdate       RequestOp = iota + 1 // <idx><frac>
	OpAxisInterval                          // <idx><frac>I<ms>
	OpAxisSpeed                             // <idx><frac>S<rate>
	OpCall                                  // <idx>
	OpPropertyGet                           // <idx>P<name>
	OpPropertyInterval                      // <idx>P<name>I<ms>
	OpPropertySet                           // <idx>P<name>Z<blob>
	OpStop                                  // <idx>stop
	OpStopAll                               // dstop
)

func (op RequestOp) String() string {
	switch op {
	case OpAxisUpdate:
		return "AxisUpdate"
	case OpAxisInterval:
		return "AxisInterval"
	case OpAxisSpeed:
		return "AxisSpeed"
	case OpCall:
		return "Call"
	case OpPropertyGet:
		return "PropertyGet"
	case OpPropertyInterval:
		return "PropertyInterval"
	case OpPropertySet:
		return "PropertySet"
	case OpStop:
		return "Stop"
	case OpStopAll:
		return "StopAll"
	default:
		return "Unknown"
	}
}

// RequestRecord is one decoded request record. Only the fields relevant to
// Op are set.
type RequestRecord struct {
	Op       RequestOp
	Index    CommandIndex
	Value    Fractional
	Extra    uint32 // interval in ms or speed
	Property string
	Payload  []byte
}

// ParseRequest parses one request line, without its '\n'. It is the device
// side of RequestWriter.
func ParseRequest(line []byte) ([]RequestRecord, error) {
	p := &parser{lex: newLexer(trimLine(line))}
	var records []RequestRecord

	for {
		tok := p.next()
		switch tok.typ {
		case tokenTypeError:
			return nil, &TokenizeError{Pos: tok.pos, Msg: tok.val}
		case tokenTypeGlobalStop:
			records = append(records, RequestRecord{Op: OpStopAll})
		case tokenTypeCommandIndex:
			rec, err := p.parseRequestRecord(tok)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		default:
			return nil, p.unexpected(tok, "expected a command index")
		}

		switch sep := p.next(); sep.typ {
		case tokenTypeSeparator:
		case tokenTypeEOF:
			return records, nil
		default:
			return nil, p.unexpected(sep, "expected a record separator")
		}
	}
}

func (p *parser) parseRequestRecord(idxTok token) (RequestRecord, error) {
	idx, err := ParseCommandIndex(idxTok.val)
	if err != nil {
		return RequestRecord{}, &SyntaxError{Pos: idxTok.pos, Msg: err.Error()}
	}
	rec := RequestRecord{Op: OpCall, Index: idx}

	switch tok := p.peek(); tok.typ {
	case tokenTypeStop:
		p.next()
		rec.Op = OpStop

	case tokenTypeFraction:
		p.next()
		if rec.Value, err = ParseFractional(tok.val); err != nil {
			return RequestRecord{}, &SyntaxError{Pos: tok.pos, Msg: err.Error()}
		}
		rec.Op = OpAxisUpdate
		switch mod := p.peek(); mod.typ {
		case tokenTypeInterval, tokenTypeSpeed:
			p.next()
			if rec.Extra, err = parseUint32(mod); err != nil {
				return RequestRecord{}, err
			}
			rec.Op = OpAxisInterval
			if mod.typ == tokenTypeSpeed {
				rec.Op = OpAxisSpeed
			}
		case tokenTypeZ85:
			return RequestRecord{}, p.unexpected(mod, "axis update cannot carry a payload")
		}

	case tokenTypeProperty:
		p.next()
		rec.Op = OpPropertyGet
		rec.Property = tok.val
		switch mod := p.peek(); mod.typ {
		case tokenTypeInterval:
			p.next()
			if rec.Extra, err = parseUint32(mod); err != nil {
				return RequestRecord{}, err
			}
			rec.Op = OpPropertyInterval
		case tokenTypeZ85:
			p.next()
			if rec.Payload, err = p.decodeZ85(mod); err != nil {
				return RequestRecord{}, err
			}
			rec.Op = OpPropertySet
		case tokenTypeSpeed:
			return RequestRecord{}, p.unexpected(mod, "property record cannot carry a speed")
		}

	case tokenTypeZ85:
		return RequestRecord{}, p.unexpected(tok, "endpoint call cannot carry a payload")
	}

	return rec, nil
}

func parseUint32(tok token) (uint32, error) {
	v, err := strconv.ParseUint(tok.val, 10, 32)
	if err != nil {
		return 0, &SyntaxError{Pos: tok.pos, Msg: "number out of range: " + tok.val}
	}
	return uint32(v), nil
}
