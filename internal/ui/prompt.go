package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/0x6d61/sqlsiphon/internal/engine"
)

// Prompt asks the operator questions on a terminal.
type Prompt struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewPrompt creates a prompt reading answers from in.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

// Ask prints message and returns the trimmed answer, or def when the
// answer is empty or input is exhausted.
func (p *Prompt) Ask(message, def string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "[?] %s ", message)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("ui: read answer: %w", err)
	}
	line = strings.TrimSpace(line)
	if errors.Is(err, io.EOF) && line == "" {
		fmt.Fprintln(p.out, def)
	}
	if line == "" {
		return def, nil
	}
	return line, nil
}

// PromptDecider answers the multi-row questions through a Prompt.
type PromptDecider struct {
	Prompt *Prompt
}

// MultipleEntries asks whether the query can return several rows.
func (d *PromptDecider) MultipleEntries(context.Context) (bool, error) {
	answer, err := d.Prompt.Ask("can the SQL query provided return multiple entries? [Y/n]", "Y")
	if err != nil {
		return false, err
	}
	return !strings.EqualFold(answer, "n") && !strings.EqualFold(answer, "no"), nil
}

// EntryCount asks how many of count rows to retrieve: 'a' for all, a
// number, '#' to be asked for the number, or 'q' to quit.
func (d *PromptDecider) EntryCount(_ context.Context, count int) (engine.Selection, error) {
	answer, err := d.Prompt.Ask(fmt.Sprintf(
		"the SQL query provided can return %d entries. How many entries do you want to retrieve? [a/#/q] (default 'a')", count), "a")
	if err != nil {
		return engine.Selection{}, err
	}
	if answer == "#" || strings.EqualFold(answer, "s") {
		if answer, err = d.Prompt.Ask("how many?", "10"); err != nil {
			return engine.Selection{}, err
		}
		n, err := strconv.Atoi(answer)
		if err != nil || n <= 0 {
			return engine.Selection{}, fmt.Errorf("%w: %q", engine.ErrInvalidChoice, answer)
		}
		return engine.Selection{Limit: min(n, count)}, nil
	}
	return parseSelection(answer, count)
}

// parseSelection reads an answer to the row-count question. A number must
// lie in 1..count.
func parseSelection(answer string, count int) (engine.Selection, error) {
	switch strings.ToLower(answer) {
	case "a", "all":
		return engine.Selection{}, nil
	case "q", "quit":
		return engine.Selection{Quit: true}, nil
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n <= 0 || n > count {
		return engine.Selection{}, fmt.Errorf("%w: %q", engine.ErrInvalidChoice, answer)
	}
	return engine.Selection{Limit: n}, nil
}
