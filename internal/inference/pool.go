package inference

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// task asks for the character at one position.
type task struct {
	pos int
}

type outcome struct {
	pos  int
	char rune
	err  error
}

// pool retrieves characters concurrently. Results carry their position so
// the caller can assemble them in order.
type pool struct {
	workers int
	tasks   chan task
	results chan outcome
	wg      sync.WaitGroup
}

func newPool(workers int) *pool {
	if workers <= 0 {
		workers = 1
	}
	return &pool{
		workers: workers,
		tasks:   make(chan task, workers*2),
		results: make(chan outcome, workers*2),
	}
}

func (p *pool) start(ctx context.Context, logger *slog.Logger, fn func(context.Context, int) (rune, error)) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, logger, fn)
	}
}

func (p *pool) worker(ctx context.Context, logger *slog.Logger, fn func(context.Context, int) (rune, error)) {
	defer p.wg.Done()
	for t := range p.tasks {
		p.results <- p.run(ctx, logger, fn, t)
	}
}

func (p *pool) run(ctx context.Context, logger *slog.Logger, fn func(context.Context, int) (rune, error), t task) (out outcome) {
	out.pos = t.pos
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker recovered from panic", "position", t.pos, "panic", fmt.Sprintf("%v", r))
			out.err = fmt.Errorf("inference: character %d: panic: %v", t.pos, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		out.err = err
		return out
	}
	out.char, out.err = fn(ctx, t.pos)
	return out
}

func (p *pool) submit(t task) {
	p.tasks <- t
}

// close stops accepting tasks, waits for the workers and closes results.
func (p *pool) close() {
	close(p.tasks)
	p.wg.Wait()
	close(p.results)
}

// parallel fills chars with the characters at positions first..last.
func (r *retrieval) parallel(ctx context.Context, first, last int, chars []rune) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := newPool(min(r.o.threads, last-first+1))
	p.start(ctx, r.o.logger, r.char)
	go func() {
		for pos := first; pos <= last; pos++ {
			p.submit(task{pos: pos})
		}
		p.close()
	}()

	var errs []error
	for o := range p.results {
		if o.err != nil {
			errs = append(errs, o.err)
			cancel()
			continue
		}
		chars[o.pos-first] = o.char
		r.o.logger.Debug("character retrieved", "position", o.pos, "partial", describe(chars))
	}
	return joinErrors(errs)
}
