package ui

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// Progress draws a progress bar for row retrieval. Its Report method fits
// engine.WithProgress.
type Progress struct {
	out io.Writer
	bar *progressbar.ProgressBar
	max int
}

// NewProgress creates a progress bar writing to out.
func NewProgress(out io.Writer) *Progress {
	return &Progress{out: out}
}

// Report moves the bar to done of total. A new bar is started whenever the
// total changes.
func (p *Progress) Report(done, total int) {
	if p.bar == nil || total != p.max {
		p.max = total
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription("retrieving entries"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("rows"),
			progressbar.OptionShowIts(),
			progressbar.OptionOnCompletion(func() { io.WriteString(p.out, "\n") }),
		)
	}
	_ = p.bar.Set(done)
	if done >= total {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
