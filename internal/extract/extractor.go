// Package extract turns natural-language program descriptions into IPM
// programs, one sentence at a time, through an oracle session.
package extract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"nlc/internal/ipm"
	"nlc/internal/oracle"
)

// EntryName is the function that collects top-level statements.
const EntryName = "main"

// Defaults used when no option overrides them.
const (
	DefaultMaxStatements   = 64
	DefaultTimeout         = 10 * time.Second
	DefaultMinConfidence   = 0.5
	DefaultAmbiguityMargin = 0.05
)

// Extractor builds programs from text. It holds no per-extraction state and
// may be shared between goroutines if its oracle may.
type Extractor struct {
	oracle          oracle.Oracle
	maxStatements   int
	timeout         time.Duration
	minConfidence   float64
	ambiguityMargin float64
	log             zerolog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxStatements caps the number of sentences.
func WithMaxStatements(n int) Option {
	return func(e *Extractor) { e.maxStatements = n }
}

// WithTimeout bounds every oracle call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

// WithMinConfidence sets the lowest confidence accepted.
func WithMinConfidence(c float64) Option {
	return func(e *Extractor) { e.minConfidence = c }
}

// WithAmbiguityMargin sets how far apart the two best candidates must be.
func WithAmbiguityMargin(m float64) Option {
	return func(e *Extractor) { e.ambiguityMargin = m }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Extractor) { e.log = l }
}

// New creates an Extractor backed by orc.
func New(orc oracle.Oracle, opts ...Option) *Extractor {
	e := &Extractor{
		oracle:          orc,
		maxStatements:   DefaultMaxStatements,
		timeout:         DefaultTimeout,
		minConfidence:   DefaultMinConfidence,
		ambiguityMargin: DefaultAmbiguityMargin,
		log:             zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With().Str("component", "extract").Logger()
	return e
}

// Extract interprets text sentence by sentence and merges every fragment
// into a new Program. It fails on the first sentence that cannot be
// interpreted unambiguously.
func (e *Extractor) Extract(ctx context.Context, text string) (prog *ipm.Program, err error) {
	text, err = Normalize(text)
	if err != nil {
		return nil, err
	}
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil, &IntentError{Kind: UnsupportedConstruct, Msg: "no sentences in input"}
	}
	if e.maxStatements > 0 && len(sentences) > e.maxStatements {
		return nil, &IntentError{
			Kind: UnsupportedConstruct,
			Msg:  fmt.Sprintf("%d sentences exceed the limit of %d", len(sentences), e.maxStatements),
		}
	}

	sess, err := e.oracle.Open(ctx)
	if err != nil {
		return nil, &IntentError{Kind: OracleUnavailable, Msg: "opening oracle session", Err: err}
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			e.log.Warn().Err(cerr).Msg("closing oracle session")
		}
	}()

	b := &builder{prog: &ipm.Program{}}
	for i, s := range sentences {
		fail := func(kind ErrorKind, msg string, cause error) error {
			return &IntentError{Kind: kind, Sentence: i + 1, Text: s, Msg: msg, Err: cause}
		}

		cands, err := e.interpret(ctx, sess, s, b.snapshot(i))
		if err != nil {
			switch {
			case errors.Is(err, oracle.ErrUnsupported):
				return nil, fail(UnsupportedConstruct, "oracle cannot interpret sentence", err)
			case errors.Is(err, oracle.ErrAmbiguous), errors.Is(err, oracle.ErrMalformed):
				return nil, fail(Ambiguous, "oracle cannot interpret sentence", err)
			default:
				return nil, fail(OracleUnavailable, "oracle call failed", err)
			}
		}

		frag, conf, err := e.choose(cands)
		if err != nil {
			var ie *IntentError
			if errors.As(err, &ie) {
				ie.Sentence, ie.Text = i+1, s
			}
			return nil, err
		}
		if err := b.merge(frag); err != nil {
			return nil, fail(Ambiguous, err.Error(), nil)
		}
		e.log.Debug().
			Int("sentence", i+1).
			Float64("confidence", conf).
			Str("fragment", frag.String()).
			Msg("merged fragment")
	}
	return b.prog, nil
}

// interpret calls the session in its own goroutine so that a session that
// ignores its context still cannot hold the extractor past the timeout. An
// abandoned call keeps running and may overlap the session's Close.
func (e *Extractor) interpret(ctx context.Context, sess oracle.Session, chunk string, snap oracle.Snapshot) ([]oracle.Candidate, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type reply struct {
		cands []oracle.Candidate
		err   error
	}
	done := make(chan reply, 1)
	go func() {
		c, err := sess.Interpret(ctx, chunk, snap)
		done <- reply{c, err}
	}()

	select {
	case r := <-done:
		return r.cands, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// choose selects the best candidate and checks it structurally.
func (e *Extractor) choose(cands []oracle.Candidate) (oracle.Fragment, float64, error) {
	if len(cands) == 0 {
		return oracle.Fragment{}, 0, &IntentError{Kind: UnsupportedConstruct, Msg: "oracle returned no candidates"}
	}
	for _, c := range cands {
		if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
			return oracle.Fragment{}, 0, &IntentError{Kind: Ambiguous, Msg: fmt.Sprintf("confidence %v out of range", c.Confidence)}
		}
	}

	sorted := make([]oracle.Candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })

	best := sorted[0]
	if best.Confidence < e.minConfidence {
		return oracle.Fragment{}, 0, &IntentError{
			Kind: Ambiguous,
			Msg:  fmt.Sprintf("best confidence %.2f is below %.2f", best.Confidence, e.minConfidence),
		}
	}
	if len(sorted) > 1 {
		next := sorted[1]
		if best.Confidence-next.Confidence < e.ambiguityMargin && !cmp.Equal(best.Fragment, next.Fragment) {
			return oracle.Fragment{}, 0, &IntentError{
				Kind: Ambiguous,
				Msg:  fmt.Sprintf("two interpretations with confidence %.2f and %.2f", best.Confidence, next.Confidence),
			}
		}
	}

	f := best.Fragment
	var err error
	switch {
	case f.Decl != nil && f.Stmt != nil:
		err = errors.New("fragment holds both a declaration and a statement")
	case f.Decl != nil:
		err = ipm.CheckDecl(f.Decl)
	case f.Stmt != nil:
		err = ipm.CheckStmt(f.Stmt)
	default:
		err = errors.New("empty fragment")
	}
	if err != nil {
		return oracle.Fragment{}, 0, &IntentError{Kind: Ambiguous, Msg: "malformed fragment", Err: err}
	}
	return f, best.Confidence, nil
}
