package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"submux/internal/logging"
	"submux/internal/progress"
	"submux/internal/services"
)

// DefaultProgressInterval is the minimum spacing between status pushes.
const DefaultProgressInterval = 10 * time.Second

// Sink receives formatted progress text. Errors are the sink's concern; the
// runner never stops because a push failed.
type Sink func(ctx context.Context, text string)

// Result describes a finished encoder process.
type Result struct {
	ExitCode    int
	Diagnostics string
	Duration    time.Duration
	Cancelled   bool
}

// Succeeded reports whether the process exited cleanly.
func (r Result) Succeeded() bool {
	return r.ExitCode == 0 && !r.Cancelled
}

// Runner launches ffmpeg and streams its diagnostics.
type Runner struct {
	binary   string
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewRunner constructs a runner for binary. A non-positive interval pushes
// every snapshot.
func NewRunner(binary string, interval time.Duration, logger *slog.Logger) *Runner {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Runner{
		binary:   binary,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "ffmpeg"),
		now:      time.Now,
	}
}

// WithClock replaces the time source used for throttling and durations.
func (r *Runner) WithClock(now func() time.Time) {
	if r != nil && now != nil {
		r.now = now
	}
}

// Binary returns the executable the runner launches.
func (r *Runner) Binary() string {
	return r.binary
}

// Run executes the binary with args. stderr is read line by line; every line
// is kept for diagnostics and lines carrying progress fields are offered to
// sink, at most once per interval. The interval is measured from process
// start, so a run shorter than the interval pushes nothing. Run returns only after the process has
// exited and its stderr is fully drained. The returned error is non-nil only
// when the process could not be started or waited on.
func (r *Runner) Run(ctx context.Context, args []string, sink Sink) (Result, error) {
	logger := logging.WithContext(ctx, r.logger)
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.WaitDelay = 5 * time.Second
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "ffmpeg", "pipe stderr", "", err)
	}

	started := r.now()
	if err := cmd.Start(); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "ffmpeg", "start", r.binary, err)
	}
	logger.Debug("ffmpeg started",
		logging.String(logging.FieldEventType, "ffmpeg_started"),
		logging.Int("pid", cmd.Process.Pid),
		logging.String("args", strings.Join(args, " ")),
	)

	pusher := newPusher(ctx, sink)
	var (
		diagnostics strings.Builder
		lastPush    = started
	)
	drainErr := progress.Each(stderr, func(line string) {
		if diagnostics.Len() > 0 {
			diagnostics.WriteByte('\n')
		}
		diagnostics.WriteString(line)

		snap := progress.ParseLine(line)
		if snap.Empty() || sink == nil {
			return
		}
		now := r.now()
		if now.Sub(lastPush) < r.interval {
			return
		}
		lastPush = now
		pusher.offer(snap.Format())
	})
	waitErr := cmd.Wait()
	pusher.close()

	result := Result{
		Diagnostics: diagnostics.String(),
		Duration:    r.now().Sub(started),
		Cancelled:   ctx.Err() != nil,
	}
	if drainErr != nil {
		logger.Debug("ffmpeg stderr read ended early", logging.Error(drainErr))
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		result.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case result.Cancelled:
		result.ExitCode = -1
	default:
		return result, services.Wrap(services.ErrExternalTool, "ffmpeg", "wait", "", waitErr)
	}

	logger.Debug("ffmpeg exited",
		logging.String(logging.FieldEventType, "ffmpeg_exited"),
		logging.Int("exit_code", result.ExitCode),
		logging.Duration("duration", result.Duration),
		logging.Bool("cancelled", result.Cancelled),
	)
	return result, nil
}

// pusher delivers status text from one goroutine so updates never overlap.
// When the sink falls behind by a full buffer, the oldest pending text is dropped.
const pendingUpdates = 8

type pusher struct {
	ctx     context.Context
	sink    Sink
	pending chan string
	done    chan struct{}
}

func newPusher(ctx context.Context, sink Sink) *pusher {
	p := &pusher{ctx: ctx, sink: sink, pending: make(chan string, pendingUpdates), done: make(chan struct{})}
	go p.loop()
	return p
}

func (p *pusher) loop() {
	defer close(p.done)
	for text := range p.pending {
		if p.sink != nil {
			p.sink(p.ctx, text)
		}
	}
}

// offer must only be called from the drain goroutine.
func (p *pusher) offer(text string) {
	for {
		select {
		case p.pending <- text:
			return
		default:
		}
		select {
		case <-p.pending:
		default:
		}
	}
}

func (p *pusher) close() {
	close(p.pending)
	<-p.done
}

// Tail returns at most limit trailing characters of text.
func Tail(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[len(runes)-limit:])
}

// FormatDuration renders an elapsed time for users, rounded to whole seconds.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return d.String()
}
