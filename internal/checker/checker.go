package checker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/August26/proxyscout/internal/geo"
	"github.com/August26/proxyscout/internal/logging"
	"github.com/August26/proxyscout/internal/model"
	"github.com/August26/proxyscout/internal/parser"
	"github.com/August26/proxyscout/internal/progress"
)

const (
	DefaultConcurrency  = 5
	DefaultCheckTimeout = 5 * time.Second
	DefaultRetryDelay   = 500 * time.Millisecond

	batchTimeoutMessage = "Error checking proxy: timeout"
)

// Observer receives live progress of a validation run. All calls come from
// the goroutine that called Validate.
type Observer interface {
	progress.Reporter
	OnCompleted(report model.ValidationReport)
}

// Saver persists working proxies. Errors are logged, never fatal.
type Saver interface {
	Save(ctx context.Context, candidate, country string) error
}

// Engine checks batches of candidates with a fixed pool of workers.
type Engine struct {
	dialer  Dialer
	locator geo.Locator
	store   Saver
	log     *slog.Logger

	concurrency  int
	checkTimeout time.Duration
	batchTimeout time.Duration
	retries      int
	retryDelay   time.Duration
}

type Option func(*Engine)

// WithConcurrency sets the number of workers. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithCheckTimeout bounds every single dial attempt.
func WithCheckTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.checkTimeout = d
		}
	}
}

// WithBatchTimeout puts a deadline on the whole run. Candidates without an
// outcome by then are failed with a timeout. Zero means no deadline.
func WithBatchTimeout(d time.Duration) Option {
	return func(e *Engine) { e.batchTimeout = d }
}

// WithRetries sets how many extra attempts a failed dial gets.
func WithRetries(n int, delay time.Duration) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.retries = n
		}
		if delay > 0 {
			e.retryDelay = delay
		}
	}
}

func WithStore(s Saver) Option {
	return func(e *Engine) { e.store = s }
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine returns an engine dialing with d and enriching working proxies
// with loc. A nil loc reports every country as geo.Unknown.
func NewEngine(d Dialer, loc geo.Locator, opts ...Option) *Engine {
	e := &Engine{
		dialer:       d,
		locator:      loc,
		log:          logging.Discard(),
		concurrency:  DefaultConcurrency,
		checkTimeout: DefaultCheckTimeout,
		retryDelay:   DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.locator == nil {
		e.locator = geo.LocatorFunc(func(context.Context, string) string { return geo.Unknown })
	}
	e.log = e.log.With("component", "checker")
	return e
}

// ValidateFile loads lines from path and validates them. An unreadable file
// is the only error returned.
func (e *Engine) ValidateFile(ctx context.Context, p model.Protocol, path string, obs Observer) (model.ValidationReport, error) {
	lines, err := parser.LoadFromFile(path)
	if err != nil {
		return model.ValidationReport{}, err
	}
	return e.Validate(ctx, p, lines, obs), nil
}

type job struct {
	line string
}

// Validate checks every line as a proxy of protocol p and returns one outcome
// per line, in completion order. Cancelling ctx stops dispatching; lines not
// yet checked are reported as cancelled, so the report always accounts for
// every input line.
func (e *Engine) Validate(ctx context.Context, p model.Protocol, lines []string, obs Observer) model.ValidationReport {
	if obs == nil {
		obs = nopObserver{}
	}
	report := model.ValidationReport{
		Protocol: p,
		Total:    len(lines),
		Outcomes: make([]model.CheckOutcome, 0, len(lines)),
	}

	e.log.Info("validation started",
		"protocol", p,
		"total", len(lines),
		"concurrency", e.concurrency,
		"check_timeout", e.checkTimeout,
		"batch_timeout", e.batchTimeout,
		"retries", e.retries,
	)
	start := time.Now()

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if e.batchTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.batchTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	jobs := make(chan job)
	results := make(chan model.CheckOutcome, e.concurrency)

	var g errgroup.Group
	g.Go(func() error {
		defer close(jobs)
		for i, line := range lines {
			select {
			case jobs <- job{line: line}:
			case <-runCtx.Done():
				for _, rest := range lines[i:] {
					results <- e.interrupted(runCtx, p, rest)
				}
				return nil
			}
		}
		return nil
	})
	for w := 0; w < e.concurrency; w++ {
		g.Go(func() error {
			for j := range jobs {
				results <- e.check(runCtx, p, j.line)
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	saveCtx := context.WithoutCancel(ctx)
	for o := range results {
		report.Outcomes = append(report.Outcomes, o)
		report.Completed++

		if o.IsWorking() && e.store != nil {
			if err := e.store.Save(saveCtx, o.Candidate.String(), o.Country); err != nil {
				e.log.Error("failed to save proxy", "proxy", o.Candidate.String(), "err", err)
			}
		}

		e.log.Debug("proxy checked",
			"input", o.Input,
			"status", o.Status,
			"country", o.Country,
			"kind", o.Kind,
			"err", o.Error,
		)
		obs.OnProgress(o.Message())
		obs.OnProgressCount(report.Completed, report.Total)
	}

	e.log.Info("validation finished",
		"total", report.Total,
		"working", len(report.Working()),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	obs.OnCompleted(report)
	return report
}

// check produces the outcome of a single line.
func (e *Engine) check(ctx context.Context, p model.Protocol, line string) model.CheckOutcome {
	c, err := parser.Parse(line, p)
	if err != nil {
		return model.Failed(line, model.Candidate{}, model.KindInvalidFormat, "Invalid format")
	}
	if ctx.Err() != nil {
		return e.interrupted(ctx, p, line)
	}

	start := time.Now()
	if err := e.dial(ctx, c); err != nil {
		if ctx.Err() != nil {
			return e.interrupted(ctx, p, line)
		}
		de := classify(err)
		return model.Failed(line, c, de.Kind, de.Error())
	}
	latency := time.Since(start).Milliseconds()

	return model.Working(line, c, e.locator.Lookup(ctx, c.Host), latency)
}

// dial makes up to retries+1 attempts, each bounded by checkTimeout.
func (e *Engine) dial(ctx context.Context, c model.Candidate) error {
	attempt := func() (struct{}, error) {
		actx, cancel := context.WithTimeout(ctx, e.checkTimeout)
		defer cancel()
		return struct{}{}, e.dialer.Dial(actx, c)
	}
	if e.retries == 0 {
		_, err := attempt()
		return err
	}

	_, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewConstantBackOff(e.retryDelay)),
		backoff.WithMaxTries(uint(e.retries+1)),
	)
	return err
}

// interrupted is the outcome of a line whose run ended before it finished:
// a timeout when the batch deadline passed, cancelled otherwise.
func (e *Engine) interrupted(ctx context.Context, p model.Protocol, line string) model.CheckOutcome {
	c, err := parser.Parse(line, p)
	if err != nil {
		return model.Failed(line, model.Candidate{}, model.KindInvalidFormat, "Invalid format")
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return model.Failed(line, c, model.KindTimeout, batchTimeoutMessage)
	}
	return model.Failed(line, c, model.KindCancelled, "check cancelled")
}

type nopObserver struct {
	progress.Nop
}

func (nopObserver) OnCompleted(model.ValidationReport) {}
