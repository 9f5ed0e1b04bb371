// Package payload turns technique vectors into injected parameter values:
// placeholder cleanup, boundary framing and the tamper chain.
package payload

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/0x6d61/sqlsiphon/internal/tamper"
	"github.com/0x6d61/sqlsiphon/internal/technique"
)

// Placeholders understood by Cleanup.
const (
	RandNum        = "[RANDNUM]"
	RandStr        = "[RANDSTR]"
	SleepTime      = "[SLEEPTIME]"
	OrigValue      = "[ORIGVALUE]"
	DelimiterStart = "[DELIMITER_START]"
	DelimiterStop  = "[DELIMITER_STOP]"
)

// DefaultSleepTime is the delay in seconds used by time-based vectors.
const DefaultSleepTime = 5

// Payload is a framed injection ready to be placed into a request.
type Payload struct {
	Technique technique.Technique

	// Query is the framed SQL before tampering; Value is what is sent as
	// the parameter value.
	Query string
	Value string
}

// String returns the final parameter value.
func (p *Payload) String() string {
	return p.Value
}

// Agent builds payloads for one injection point.
type Agent struct {
	orig  string
	sleep int
	chain tamper.Chain
	start string
	stop  string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAgent creates an agent for the given parameter with random output
// delimiters and the default sleep time.
func NewAgent(param technique.Parameter) *Agent {
	a := &Agent{
		orig:  param.Value,
		sleep: DefaultSleepTime,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	a.start = "q" + a.RandomString(3) + "q"
	for {
		a.stop = "q" + a.RandomString(3) + "q"
		if a.stop != a.start {
			break
		}
	}
	return a
}

// WithSleepTime sets the [SLEEPTIME] value.
func (a *Agent) WithSleepTime(seconds int) *Agent {
	if seconds > 0 {
		a.sleep = seconds
	}
	return a
}

// WithTamper sets the tamper chain applied to every payload.
func (a *Agent) WithTamper(chain tamper.Chain) *Agent {
	a.chain = chain
	return a
}

// WithDelimiters overrides the random output delimiters.
func (a *Agent) WithDelimiters(start, stop string) *Agent {
	a.start, a.stop = start, stop
	return a
}

// Delimiters returns the markers wrapped around inband and error output.
func (a *Agent) Delimiters() (start, stop string) {
	return a.start, a.stop
}

// RandomInt returns a random four-digit number.
func (a *Agent) RandomInt() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return 1000 + a.rng.IntN(9000)
}

// RandomString returns n random lowercase letters.
func (a *Agent) RandomString(n int) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + a.rng.IntN(26))
	}
	return string(b)
}

// Cleanup replaces the random, timing, delimiter and original-value
// placeholders in s. The [INFERENCE] and [QUERY] markers are left in place.
func (a *Agent) Cleanup(s string) string {
	for strings.Contains(s, RandNum) {
		s = strings.Replace(s, RandNum, strconv.Itoa(a.RandomInt()), 1)
	}
	for strings.Contains(s, RandStr) {
		s = strings.Replace(s, RandStr, a.RandomString(4), 1)
	}
	return strings.NewReplacer(
		SleepTime, strconv.Itoa(a.sleep),
		OrigValue, a.orig,
		DelimiterStart, a.start,
		DelimiterStop, a.stop,
	).Replace(s)
}

// Inference substitutes predicate into the [INFERENCE] marker of v.
func (a *Agent) Inference(v *technique.Vector, predicate string) string {
	return a.Cleanup(strings.ReplaceAll(v.Template, technique.InferenceMarker, predicate))
}

// Query substitutes query into the [QUERY] marker of v.
func (a *Agent) Query(v *technique.Vector, query string) string {
	return a.Cleanup(strings.ReplaceAll(v.Template, technique.QueryMarker, query))
}

// PrefixQuery prepends the base value and the vector prefix to q. Vectors
// flagged Negative replace the original value with a negative random number
// so the legitimate query yields no row.
func (a *Agent) PrefixQuery(v *technique.Vector, q string) string {
	base := a.orig
	if v.Negative {
		base = "-" + strconv.Itoa(a.RandomInt())
	}
	return base + v.Prefix + " " + q
}

// SuffixQuery appends the vector suffix to q.
func (a *Agent) SuffixQuery(v *technique.Vector, q string) string {
	if v.Suffix == "" {
		return q
	}
	return q + " " + v.Suffix
}

// Payload frames q with the vector boundary and applies the tamper chain.
func (a *Agent) Payload(t technique.Technique, v *technique.Vector, q string) *Payload {
	framed := a.SuffixQuery(v, a.PrefixQuery(v, q))
	return a.Raw(t, framed)
}

// Raw wraps an already framed query, applying only the tamper chain.
func (a *Agent) Raw(t technique.Technique, framed string) *Payload {
	return &Payload{
		Technique: t,
		Query:     framed,
		Value:     a.chain.Apply(framed),
	}
}
