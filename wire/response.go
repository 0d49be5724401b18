package wire

import (
	"fmt"

	"github.com/sevfate/go-tcode/z85"
)

// Record is one record of a response line: an *EndpointRecord, a
// *PropertyRecord or a *TerminatorRecord.
type Record interface {
	record()
}

// EndpointRecord carries the payload of an endpoint, `<idx>Z<blob>`.
type EndpointRecord struct {
	Index   CommandIndex
	Payload []byte
}

// PropertyRecord carries the value of a property, `<idx>P<name>Z<blob>`.
type PropertyRecord struct {
	Index    CommandIndex
	Property string
	Payload  []byte
}

// TerminatorRecord ends a response, `E<digit>[Z<blob>]`.
type TerminatorRecord struct {
	Code    ErrorCode
	Payload []byte
}

func (*EndpointRecord) record()   {}
func (*PropertyRecord) record()   {}
func (*TerminatorRecord) record() {}

// Error decodes the terminator payload.
func (r *TerminatorRecord) Error() (Error, error) {
	return DecodeError(r.Code, r.Payload)
}

// ParseResponse parses one response line, without its '\n'. A trailing '\r'
// is ignored.
//
// The returned records end with exactly one *TerminatorRecord. Framing
// problems are reported as *TokenizeError and grammar problems as
// *SyntaxError; in both cases no record is returned.
func ParseResponse(line []byte) ([]Record, error) {
	p := &parser{lex: newLexer(trimLine(line))}
	records := make([]Record, 0, 4)

	for {
		tok := p.next()
		switch tok.typ {
		case tokenTypeError:
			return nil, &TokenizeError{Pos: tok.pos, Msg: tok.val}

		case tokenTypeCommandIndex:
			rec, err := p.parseResponseRecord(tok)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)

		case tokenTypeErrorCode:
			rec, err := p.parseTerminator(tok)
			if err != nil {
				return nil, err
			}
			if end := p.next(); end.typ != tokenTypeEOF {
				return nil, p.unexpected(end, "terminator must be the last record")
			}
			return append(records, rec), nil

		case tokenTypeEOF:
			return nil, &SyntaxError{Pos: tok.pos, Msg: "missing terminator"}

		default:
			return nil, p.unexpected(tok, "expected a command index or an error code")
		}

		switch sep := p.next(); sep.typ {
		case tokenTypeSeparator:
		case tokenTypeEOF:
			return nil, &SyntaxError{Pos: sep.pos, Msg: "missing terminator"}
		default:
			return nil, p.unexpected(sep, "expected a record separator")
		}
	}
}

func (p *parser) parseResponseRecord(idxTok token) (Record, error) {
	idx, err := ParseCommandIndex(idxTok.val)
	if err != nil {
		return nil, &SyntaxError{Pos: idxTok.pos, Msg: err.Error()}
	}

	tok := p.next()
	switch tok.typ {
	case tokenTypeZ85:
		payload, err := p.decodeZ85(tok)
		if err != nil {
			return nil, err
		}
		return &EndpointRecord{Index: idx, Payload: payload}, nil

	case tokenTypeProperty:
		blob := p.next()
		if blob.typ != tokenTypeZ85 {
			return nil, p.unexpected(blob, "property record without payload")
		}
		payload, err := p.decodeZ85(blob)
		if err != nil {
			return nil, err
		}
		return &PropertyRecord{Index: idx, Property: tok.val, Payload: payload}, nil

	default:
		return nil, p.unexpected(tok, "expected a payload or a property after "+idx.String())
	}
}

func (p *parser) parseTerminator(codeTok token) (*TerminatorRecord, error) {
	rec := &TerminatorRecord{Code: ErrorCode(codeTok.val[1] - '0')}
	if p.peek().typ == tokenTypeZ85 {
		payload, err := p.decodeZ85(p.next())
		if err != nil {
			return nil, err
		}
		rec.Payload = payload
	}
	return rec, nil
}

// parser pulls tokens from the lexer with one token of lookahead.
type parser struct {
	lex    *lexer
	peeked *token
}

func (p *parser) next() token {
	if p.peeked != nil {
		t := *p.peeked
		p.peeked = nil
		return t
	}
	return p.lex.nextToken()
}

func (p *parser) peek() token {
	if p.peeked == nil {
		t := p.lex.nextToken()
		p.peeked = &t
	}
	return *p.peeked
}

// unexpected converts tok into the matching error: a lexer error token stays
// a tokenize error, anything else is a syntax error.
func (p *parser) unexpected(tok token, msg string) error {
	if tok.typ == tokenTypeError {
		return &TokenizeError{Pos: tok.pos, Msg: tok.val}
	}
	return &SyntaxError{Pos: tok.pos, Msg: msg}
}

func (p *parser) decodeZ85(tok token) ([]byte, error) {
	payload, err := z85.DecodeString(tok.val)
	if err != nil {
		return nil, &TokenizeError{Pos: tok.pos, Msg: err.Error()}
	}
	return payload, nil
}

func trimLine(line []byte) string {
	n := len(line)
	for n > 0 && (line[n-1] == '\n' || line[n-1] == '\r' || line[n-1] == 0) {
		n--
	}
	return string(line[:n])
}

// String renders r the way it appears on the wire.
func (r *EndpointRecord) String() string {
	return fmt.Sprintf("%sZ[%d bytes]", r.Index, len(r.Payload))
}

func (r *PropertyRecord) String() string {
	return fmt.Sprintf("%sP%sZ[%d bytes]", r.Index, r.Property, len(r.Payload))
}

func (r *TerminatorRecord) String() string {
	return fmt.Sprintf("E%d[%d bytes]", r.Code, len(r.Payload))
}
