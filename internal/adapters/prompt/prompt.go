// Package prompt reads answers to interactive questions from a terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Questions asked for values missing from the command line.
const (
	StartDate = "Enter the first date (YYYY-MM-DD): "
	EndDate   = "Enter the second date (YYYY-MM-DD): "
	Count     = "How many CVEs with an EPSS increase do you want to see? "
)

// ErrNoInput is returned when input ends before an answer is given.
var ErrNoInput = errors.New("no input")

// Prompter writes questions to out and reads one line per answer from in.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// New creates a Prompter.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Ask prints question and returns the trimmed answer. A final line without
// a newline is accepted.
func (p *Prompter) Ask(question string) (string, error) {
	if _, err := io.WriteString(p.out, question); err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	line, err := p.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("prompt: %w", err)
		}
		if line == "" {
			return "", ErrNoInput
		}
	}
	return strings.TrimSpace(line), nil
}
