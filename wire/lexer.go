package wire

import (
	"fmt"
	"strings"

	"github.com/sevfate/go-tcode/internal/queue"
	"github.com/sevfate/go-tcode/z85"
)

// token is a piece of a line identified by the lexer.
type token struct {
	typ tokenType
	val string // token text without its modifier letter
	pos int    // byte offset of the token in the line
}

type tokenType int

const (
	tokenTypeEOF          tokenType = iota
	tokenTypeError                  // val holds the message
	tokenTypeSeparator              // ' ' between records
	tokenTypeCommandIndex           // [LRVADlrvad][0-9]
	tokenTypeGlobalStop             // 'dstop'
	tokenTypeStop                   // 'stop' after a command index
	tokenTypeFraction               // [0-9]+ right after a command index
	tokenTypeProperty               // 'P' name
	tokenTypeInterval               // 'I' [0-9]+
	tokenTypeSpeed                  // 'S' [0-9]+
	tokenTypeZ85                    // 'Z' z85 symbols, a multiple of 5
	tokenTypeErrorCode              // 'E' [0-9]
)

const (
	eof          = -1
	digits       = "0123456789"
	commandTypes = "LRVADlrvad"
	stopWord     = "stop"
	globalStop   = "dstop"
)

// isNameChar reports whether c may appear in a property name. Upper-case
// letters are reserved for modifiers.
func isNameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' || c == '-' || c == '.'
}

// ValidPropertyName reports whether name can be addressed on the wire.
func ValidPropertyName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isNameChar(name[i]) {
			return false
		}
	}
	return true
}

// lexer scans one line, without its '\n', into tokens.
type lexer struct {
	input  string
	state  stateFn
	pos    int
	start  int
	tokens queue.Queue[token]
}

// stateFn is the state of the lexer as a function returning the next state.
type stateFn func(*lexer) stateFn

func newLexer(input string) *lexer {
	return &lexer{
		input:  input,
		state:  lexRecord,
		tokens: queue.NewSliceQueue[token](4),
	}
}

// next returns the next byte of the input, or eof.
func (l *lexer) next() int {
	if l.pos >= len(l.input) {
		l.pos = len(l.input) + 1
		return eof
	}
	c := l.input[l.pos]
	l.pos++
	return int(c)
}

// back steps back one byte. It may be called once per next.
func (l *lexer) back() {
	l.pos--
}

func (l *lexer) peek() int {
	c := l.next()
	l.back()
	return c
}

// accept consumes the next byte if it is in valid.
func (l *lexer) accept(valid string) bool {
	c := l.next()
	if c != eof && strings.IndexByte(valid, byte(c)) >= 0 {
		return true
	}
	l.back()
	return false
}

// acceptRun consumes a run of bytes from valid and returns its length.
func (l *lexer) acceptRun(valid string) int {
	n := 0
	for l.accept(valid) {
		n++
	}
	return n
}

func (l *lexer) emit(t tokenType) {
	l.tokens.Enqueue(token{typ: t, val: l.input[l.start:l.pos], pos: l.start})
	l.start = l.pos
}

// emitValue emits the pending input without its leading modifier letter.
func (l *lexer) emitValue(t tokenType) {
	l.tokens.Enqueue(token{typ: t, val: l.input[l.start+1 : l.pos], pos: l.start})
	l.start = l.pos
}

func (l *lexer) emitEOF() {
	l.tokens.Enqueue(token{typ: tokenTypeEOF, pos: len(l.input)})
	l.start = len(l.input)
}

// errorf emits an error token and terminates the scan.
func (l *lexer) errorf(format string, args ...any) stateFn {
	pos := min(l.pos, len(l.input))
	l.tokens.Enqueue(token{typ: tokenTypeError, val: fmt.Sprintf(format, args...), pos: pos})
	return nil
}

// nextToken returns the next token. After an EOF or error token it keeps
// returning EOF.
func (l *lexer) nextToken() token {
	for {
		if t, ok := l.tokens.Dequeue(); ok {
			return t
		}
		if l.state == nil {
			return token{typ: tokenTypeEOF, pos: len(l.input)}
		}
		l.state = l.state(l)
	}
}

// lexRecord scans the head of a record.
func lexRecord(l *lexer) stateFn {
	rest := l.input[l.pos:]
	if strings.HasPrefix(rest, globalStop) {
		l.pos += len(globalStop)
		l.emit(tokenTypeGlobalStop)
		return lexRecordEnd
	}

	switch c := l.next(); {
	case c == eof:
		return l.errorf("unexpected end of line, expected a record")
	case c == 'E':
		if !l.accept(digits) {
			return l.errorf("error code must be a single digit")
		}
		l.emit(tokenTypeErrorCode)
		return lexAfterErrorCode
	case strings.IndexByte(commandTypes, byte(c)) >= 0:
		if !l.accept(digits) {
			return l.errorf("command index %q lacks a slot digit", rune(c))
		}
		l.emit(tokenTypeCommandIndex)
		return lexAfterIndex
	default:
		return l.errorf("unexpected character %q at start of record", rune(c))
	}
}

// lexAfterIndex scans what follows a command index.
func lexAfterIndex(l *lexer) stateFn {
	if strings.HasPrefix(l.input[l.pos:], stopWord) {
		l.pos += len(stopWord)
		l.emit(tokenTypeStop)
		return lexRecordEnd
	}

	switch c := l.peek(); {
	case c >= '0' && c <= '9':
		l.acceptRun(digits)
		l.emit(tokenTypeFraction)
		return lexModifier
	case c == 'P':
		return lexProperty
	case c == 'Z':
		return lexZ85
	default:
		return lexRecordEnd
	}
}

func lexProperty(l *lexer) stateFn {
	l.next() // 'P'
	for l.pos < len(l.input) && isNameChar(l.input[l.pos]) {
		l.pos++
	}
	if l.pos-l.start == 1 {
		return l.errorf("empty property name")
	}
	l.emitValue(tokenTypeProperty)
	return lexModifier
}

// lexModifier scans the optional trailing modifier of a record.
func lexModifier(l *lexer) stateFn {
	switch l.peek() {
	case 'I':
		return lexNumber(tokenTypeInterval)
	case 'S':
		return lexNumber(tokenTypeSpeed)
	case 'Z':
		return lexZ85
	default:
		return lexRecordEnd
	}
}

func lexNumber(t tokenType) stateFn {
	return func(l *lexer) stateFn {
		m := l.next()
		if l.acceptRun(digits) == 0 {
			return l.errorf("modifier %q lacks digits", rune(m))
		}
		l.emitValue(t)
		return lexRecordEnd
	}
}

func lexZ85(l *lexer) stateFn {
	l.next() // 'Z'
	for l.pos < len(l.input) && z85.IsSymbol(l.input[l.pos]) {
		l.pos++
	}
	if n := l.pos - l.start - 1; n%z85.EncodedGroupSize != 0 {
		return l.errorf("truncated z85 block of %d characters", n)
	}
	l.emitValue(tokenTypeZ85)
	return lexRecordEnd
}

func lexAfterErrorCode(l *lexer) stateFn {
	if l.peek() == 'Z' {
		return lexZ85
	}
	return lexRecordEnd
}

// lexRecordEnd expects a record separator or the end of the line. Trailing
// spaces are ignored.
func lexRecordEnd(l *lexer) stateFn {
	switch c := l.next(); c {
	case eof:
		l.emitEOF()
		return nil
	case ' ':
		l.acceptRun(" ")
		if l.peek() == eof {
			l.emitEOF()
			return nil
		}
		l.emit(tokenTypeSeparator)
		return lexRecord
	default:
		return l.errorf("unexpected character %q after record", rune(c))
	}
}
