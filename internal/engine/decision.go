package engine

import "context"

// Selection is the operator's answer to the row-count question.
type Selection struct {
	Quit bool

	// Limit is the number of rows to retrieve; 0 means all of them.
	Limit int
}

// Decider answers the questions raised while unpacking multi-row queries.
type Decider interface {
	// MultipleEntries asks whether the query can return more than one row.
	MultipleEntries(ctx context.Context) (bool, error)

	// EntryCount asks how many of count rows to retrieve.
	EntryCount(ctx context.Context, count int) (Selection, error)
}

// BatchDecider answers every question with its default: the query may
// return multiple rows and all of them are retrieved.
type BatchDecider struct{}

func (BatchDecider) MultipleEntries(context.Context) (bool, error) { return true, nil }

func (BatchDecider) EntryCount(context.Context, int) (Selection, error) {
	return Selection{}, nil
}

// Console shows progress lines to the operator.
type Console interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)

	// Mute silences the console until the returned release is called. Mutes
	// nest.
	Mute() (release func())
}

type nopConsole struct{}

func (nopConsole) Infof(string, ...any) {}
func (nopConsole) Warnf(string, ...any) {}
func (nopConsole) Mute() func()         { return func() {} }
