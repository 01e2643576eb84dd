// Package progress holds the observers the engines report to.
package progress

import (
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives progress from a running engine. Engines call it from a
// single goroutine, so implementations need no locking of their own.
type Reporter interface {
	OnProgress(message string)
	OnProgressCount(done, total int)
}

// Nop discards everything.
type Nop struct{}

func (Nop) OnProgress(string)        {}
func (Nop) OnProgressCount(int, int) {}

// Log writes every message as a debug record and counts as info records
// every step percent.
type Log struct {
	Log  *slog.Logger
	Step int

	lastPct int
}

func (l *Log) OnProgress(message string) {
	l.Log.Debug(message)
}

func (l *Log) OnProgressCount(done, total int) {
	if total <= 0 {
		return
	}
	step := l.Step
	if step <= 0 {
		step = 10
	}
	pct := done * 100 / total
	if done == total || pct >= l.lastPct+step {
		l.lastPct = pct
		l.Log.Info("progress", "done", done, "total", total, "pct", pct)
	}
}

// Bar renders a terminal progress bar; messages go to the bar description.
type Bar struct {
	w     io.Writer
	title string
	bar   *progressbar.ProgressBar
}

// NewBar returns a Bar drawing to w. The bar is created lazily on the first
// count, when the total is known.
func NewBar(w io.Writer, title string) *Bar {
	return &Bar{w: w, title: title}
}

func (b *Bar) OnProgress(message string) {
	if b.bar == nil {
		return
	}
	b.bar.Describe(b.title + " " + message)
}

func (b *Bar) OnProgressCount(done, total int) {
	if b.bar == nil || b.bar.GetMax() != total {
		b.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(b.w),
			progressbar.OptionSetDescription(b.title),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = b.bar.Set(done)
}

// Finish completes the bar, if one was drawn.
func (b *Bar) Finish() {
	if b.bar != nil {
		_ = b.bar.Finish()
	}
}

// Multi fans out to several reporters in order.
type Multi []Reporter

func (m Multi) OnProgress(message string) {
	for _, r := range m {
		r.OnProgress(message)
	}
}

func (m Multi) OnProgressCount(done, total int) {
	for _, r := range m {
		r.OnProgressCount(done, total)
	}
}
