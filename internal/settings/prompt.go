package settings

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompt asks the operator a question and returns the raw answer.
type Prompt interface {
	Ask(question string) (string, error)
}

// PromptFunc adapts a function to Prompt.
type PromptFunc func(question string) (string, error)

func (f PromptFunc) Ask(question string) (string, error) { return f(question) }

// ErrNotInteractive is returned when a prompt is needed but stdin is not a
// terminal.
var ErrNotInteractive = errors.New("cannot prompt for input: stdin is not a terminal; pass --overwrite-settings to overwrite remote values")

// LinePrompt writes the question to Out and reads one line from In.
type LinePrompt struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompt creates a prompt over the given streams.
func NewLinePrompt(in io.Reader, out io.Writer) *LinePrompt {
	return &LinePrompt{in: bufio.NewReader(in), out: out}
}

func (p *LinePrompt) Ask(question string) (string, error) {
	fmt.Fprintf(p.out, "%s ", question)
	line, err := p.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("no answer given: %w", io.ErrUnexpectedEOF)
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// StdinPrompt returns a prompt on the process's terminal, or a prompt that
// always fails with ErrNotInteractive when stdin is redirected.
func StdinPrompt() Prompt {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return PromptFunc(func(string) (string, error) { return "", ErrNotInteractive })
	}
	return NewLinePrompt(os.Stdin, os.Stdout)
}
