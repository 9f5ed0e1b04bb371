// Package ui is the operator-facing side of sqlsiphon: coloured progress
// lines, interactive questions and the row-retrieval progress bar.
package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Console prints progress lines. Lines are dropped while the console is
// muted; mutes nest.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	muted int

	info    *color.Color
	warn    *color.Color
	err     *color.Color
	success *color.Color
}

// NewConsole creates a console writing to out. Colours are disabled when
// plain is set.
func NewConsole(out io.Writer, plain bool) *Console {
	c := &Console{
		out:     out,
		info:    color.New(color.FgCyan),
		warn:    color.New(color.FgYellow),
		err:     color.New(color.FgRed, color.Bold),
		success: color.New(color.FgGreen),
	}
	if plain {
		for _, col := range []*color.Color{c.info, c.warn, c.err, c.success} {
			col.DisableColor()
		}
	}
	return c
}

// Infof prints a "[*]" line.
func (c *Console) Infof(format string, args ...any) {
	c.print(c.info, "[*] ", format, args...)
}

// Warnf prints a "[!]" line.
func (c *Console) Warnf(format string, args ...any) {
	c.print(c.warn, "[!] ", format, args...)
}

// Errorf prints a "[-]" line. Errors are shown even while muted.
func (c *Console) Errorf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err.Fprint(c.out, "[-] ")
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Successf prints a "[+]" line.
func (c *Console) Successf(format string, args ...any) {
	c.print(c.success, "[+] ", format, args...)
}

func (c *Console) print(col *color.Color, tag, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.muted > 0 {
		return
	}
	col.Fprint(c.out, tag)
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Mute silences the console until release is called. Calling release more
// than once has no further effect.
func (c *Console) Mute() (release func()) {
	c.mu.Lock()
	c.muted++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.muted--
			c.mu.Unlock()
		})
	}
}

// Muted reports whether the console is muted.
func (c *Console) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted > 0
}
