package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"golang.org/x/term"
)

// ErrInterrupt is returned when the user presses Ctrl-C.
var ErrInterrupt = errors.New("interrupted")

const maxHistory = 200

// Editor reads query lines with cursor movement and history recall.
type Editor struct {
	tty   *os.File
	saved *term.State
	rd    *bufio.Reader
	out   io.Writer

	line []rune
	pos  int

	history []string
	hpos    int
}

// NewEditor opens /dev/tty in raw mode so prompts survive a redirected stdout.
func NewEditor() (*Editor, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/tty: %w", err)
	}
	saved, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		tty.Close()
		return nil, fmt.Errorf("raw mode: %w", err)
	}
	e := newStreamEditor(tty, tty)
	e.tty, e.saved = tty, saved
	return e, nil
}

func newStreamEditor(in io.Reader, out io.Writer) *Editor {
	return &Editor{rd: bufio.NewReader(in), out: out}
}

// Close restores the terminal.
func (e *Editor) Close() {
	if e.tty == nil {
		return
	}
	term.Restore(int(e.tty.Fd()), e.saved)
	e.tty.Close()
}

// Tty returns the writer for prompts and UI.
func (e *Editor) Tty() io.Writer {
	return e.out
}

type op int

const (
	opNone op = iota
	opInsert
	opEnter
	opInterrupt
	opEOF
	opBackspace
	opDelete
	opLeft
	opRight
	opHome
	opEnd
	opKill
	opPrev
	opNext
)

var controlOps = map[rune]op{
	1:    opHome,
	3:    opInterrupt,
	4:    opEOF,
	5:    opEnd,
	8:    opBackspace,
	'\n': opEnter,
	'\r': opEnter,
	21:   opKill,
	127:  opBackspace,
}

// CSI final bytes; '1', '3' and '4' are followed by '~'.
var csiOps = map[byte]op{
	'A': opPrev,
	'B': opNext,
	'C': opRight,
	'D': opLeft,
	'H': opHome,
	'F': opEnd,
	'1': opHome,
	'3': opDelete,
	'4': opEnd,
}

func (e *Editor) readOp() (op, rune, error) {
	r, _, err := e.rd.ReadRune()
	if err != nil {
		return opNone, 0, err
	}
	if r == 27 {
		return e.readCSI(), 0, nil
	}
	if o, ok := controlOps[r]; ok {
		return o, r, nil
	}
	if r < 32 {
		return opNone, r, nil
	}
	return opInsert, r, nil
}

func (e *Editor) readCSI() op {
	if b, err := e.rd.ReadByte(); err != nil || b != '[' {
		return opNone
	}
	b, err := e.rd.ReadByte()
	if err != nil {
		return opNone
	}
	if b >= '0' && b <= '9' {
		e.rd.ReadByte() // '~'
	}
	return csiOps[b]
}

// ReadLine prompts and returns one line. It returns io.EOF on Ctrl-D at an
// empty line and ErrInterrupt on Ctrl-C.
func (e *Editor) ReadLine(prompt string) (string, error) {
	e.line = e.line[:0]
	e.pos = 0
	e.hpos = len(e.history)
	e.redraw(prompt)

	for {
		o, r, err := e.readOp()
		if err != nil {
			return "", err
		}
		switch o {
		case opInterrupt:
			fmt.Fprint(e.out, "\r\n")
			return "", ErrInterrupt
		case opEOF:
			if len(e.line) == 0 {
				fmt.Fprint(e.out, "\r\n")
				return "", io.EOF
			}
		case opEnter:
			fmt.Fprint(e.out, "\r\n")
			s := string(e.line)
			e.remember(s)
			return s, nil
		case opInsert:
			e.line = slices.Insert(e.line, e.pos, r)
			e.pos++
		case opBackspace:
			if e.pos > 0 {
				e.line = slices.Delete(e.line, e.pos-1, e.pos)
				e.pos--
			}
		case opDelete:
			if e.pos < len(e.line) {
				e.line = slices.Delete(e.line, e.pos, e.pos+1)
			}
		case opLeft:
			e.pos = max(e.pos-1, 0)
		case opRight:
			e.pos = min(e.pos+1, len(e.line))
		case opHome:
			e.pos = 0
		case opEnd:
			e.pos = len(e.line)
		case opKill:
			e.line = e.line[:0]
			e.pos = 0
		case opPrev:
			e.recall(-1)
		case opNext:
			e.recall(1)
		}
		e.redraw(prompt)
	}
}

func (e *Editor) redraw(prompt string) {
	fmt.Fprintf(e.out, "\r\x1b[K%s%s", prompt, string(e.line))
	if back := len(e.line) - e.pos; back > 0 {
		fmt.Fprintf(e.out, "\x1b[%dD", back)
	}
}

// recall moves delta entries through the history. One step past the newest
// entry is an empty line.
func (e *Editor) recall(delta int) {
	next := e.hpos + delta
	if next < 0 || next > len(e.history) {
		return
	}
	e.hpos = next
	e.line = e.line[:0]
	if next < len(e.history) {
		e.line = append(e.line, []rune(e.history[next])...)
	}
	e.pos = len(e.line)
}

// remember records line, skipping blanks and immediate repeats.
func (e *Editor) remember(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if n := len(e.history); n > 0 && e.history[n-1] == line {
		return
	}
	e.history = append(e.history, line)
	if len(e.history) > maxHistory {
		e.history = e.history[len(e.history)-maxHistory:]
	}
}

// History returns the remembered lines, oldest first.
func (e *Editor) History() []string {
	return slices.Clone(e.history)
}
