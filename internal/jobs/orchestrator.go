package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"submux/internal/config"
	"submux/internal/ffmpeg"
	"submux/internal/logging"
	"submux/internal/metrics"
	"submux/internal/notifications"
	"submux/internal/services"
	"submux/internal/session"
	"submux/internal/textutil"
	"submux/internal/transport"
)

// Outcome summarizes a finished job.
type Outcome struct {
	JobID    string        `json:"job_id"`
	UserID   string        `json:"user_id"`
	Mode     Mode          `json:"mode"`
	State    State         `json:"state"`
	Output   string        `json:"output,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
	ExitCode int           `json:"exit_code"`
	Reason   string        `json:"reason,omitempty"`
	Err      error         `json:"-"`
}

// Orchestrator drives mux jobs for many users.
type Orchestrator struct {
	cfg       *config.Config
	store     *session.Store
	transport transport.Transport
	notifier  notifications.Service
	runner    *ffmpeg.Runner
	logger    *slog.Logger
	now       func() time.Time
	lockUser  func(userID string) func()

	slots chan struct{}
	jobs  *registry
	names *nameResolver
	wg    sync.WaitGroup
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRunner replaces the ffmpeg runner built from config.
func WithRunner(r *ffmpeg.Runner) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.runner = r
		}
	}
}

// WithNotifier publishes job completion and failure to an operator channel.
func WithNotifier(n notifications.Service) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithClock replaces the time source used for elapsed-time reporting.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithUserLock makes job registration and the session read happen under the
// given per-user lock, the one intake holds while replacing assets.
func WithUserLock(lock func(userID string) func()) Option {
	return func(o *Orchestrator) {
		o.lockUser = lock
	}
}

// New builds an orchestrator. Transport calls are retried once after
// transport.retry_delay_seconds.
func New(cfg *config.Config, store *session.Store, tr transport.Transport, logger *slog.Logger, opts ...Option) *Orchestrator {
	logger = logging.NewComponentLogger(logger, "jobs")
	slots := cfg.Jobs.MaxConcurrent
	if slots <= 0 {
		slots = 1
	}
	o := &Orchestrator{
		cfg:       cfg,
		store:     store,
		transport: transport.Retry(tr, cfg.RetryDelay(), logger),
		notifier:  notifications.NewService(cfg),
		runner:    ffmpeg.NewRunner(cfg.FFmpegBinary(), cfg.ProgressInterval(), logger),
		logger:    logger,
		now:       time.Now,
		slots:     make(chan struct{}, slots),
		jobs:      newRegistry(),
		names:     newNameResolver(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Busy reports whether userID has a job in flight.
func (o *Orchestrator) Busy(userID string) bool {
	return o.jobs.busy(userID)
}

// Job returns the in-flight job for userID.
func (o *Orchestrator) Job(userID string) (JobInfo, bool) {
	return o.jobs.get(userID)
}

// Active lists in-flight jobs, oldest first.
func (o *Orchestrator) Active() []JobInfo {
	return o.jobs.list()
}

// Cancel stops the user's running job. The encoder is killed and the job
// ends in Failed with reason "cancelled".
func (o *Orchestrator) Cancel(userID string) error {
	if !o.jobs.cancel(userID) {
		return ErrNoJob
	}
	return nil
}

// CancelAll stops every in-flight job.
func (o *Orchestrator) CancelAll() {
	for _, info := range o.jobs.list() {
		o.jobs.cancel(info.UserID)
	}
}

// Wait blocks until every job started with Start has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Start validates the session and launches the job in the background. The
// job outlives ctx's cancellation; use Cancel to stop it.
func (o *Orchestrator) Start(ctx context.Context, userID string, mode Mode) (JobInfo, error) {
	job, err := o.prepare(context.WithoutCancel(ctx), userID, mode)
	if err != nil {
		return JobInfo{}, err
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.execute(job)
	}()
	return job.info, nil
}

// Run executes a job synchronously and returns its outcome. The returned
// error is non-nil when the job could not start or ended in Failed.
func (o *Orchestrator) Run(ctx context.Context, userID string, mode Mode) (Outcome, error) {
	job, err := o.prepare(ctx, userID, mode)
	if err != nil {
		return Outcome{UserID: userID, Mode: mode, State: StateAwaitingAssets, Err: err}, err
	}
	outcome := o.execute(job)
	return outcome, outcome.Err
}

type job struct {
	ctx     context.Context
	cancel  context.CancelFunc
	info    JobInfo
	session *session.Session
	logger  *slog.Logger
}

// prepare performs the AwaitingAssets check and registers the job.
func (o *Orchestrator) prepare(ctx context.Context, userID string, mode Mode) (*job, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if o.lockUser != nil {
		unlock := o.lockUser(userID)
		defer unlock()
	}
	if o.jobs.busy(userID) {
		return nil, ErrJobInProgress
	}
	sess, err := o.store.Get(ctx, userID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "jobs", "load session", "", err)
	}
	if missing := missingFor(sess, mode); len(missing) > 0 {
		return nil, &MissingAssetsError{Missing: missing}
	}

	info := JobInfo{
		ID:        uuid.NewString(),
		UserID:    userID,
		Mode:      mode,
		State:     StateConfiguring,
		StartedAt: o.now(),
	}
	jobCtx, cancel := context.WithCancel(ctx)
	jobCtx = services.WithUserID(jobCtx, userID)
	jobCtx = services.WithJobID(jobCtx, info.ID)
	jobCtx = services.WithMode(jobCtx, string(mode))
	if err := o.jobs.begin(info, cancel); err != nil {
		cancel()
		return nil, err
	}
	return &job{
		ctx:     jobCtx,
		cancel:  cancel,
		info:    info,
		session: sess,
		logger:  logging.WithContext(jobCtx, o.logger),
	}, nil
}

func missingFor(sess *session.Session, mode Mode) []string {
	if mode.needsSubtitle() {
		return sess.Missing()
	}
	if sess == nil || sess.Video == nil {
		return []string{"video"}
	}
	return nil
}

func (o *Orchestrator) setState(j *job, state State) {
	j.info.State = state
	o.jobs.setState(j.info.UserID, j.info.ID, state)
}

func (o *Orchestrator) execute(j *job) (outcome Outcome) {
	defer j.cancel()
	defer o.jobs.finish(j.info.UserID, j.info.ID)

	mode := j.info.Mode
	userID := j.info.UserID
	started := o.now()
	header := mode.Label() + " in progress"
	status := transport.NewStatusMessage(j.ctx, o.transport, userID, header+"\nPreparing...", j.logger)

	var tmpOutput string
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: jobs: panic: %v", services.ErrTransient, r)
			logging.ErrorWithContext(j.logger, "mux job panicked", "job_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldErrorHint, "report this as a bug with the job log"),
			)
			outcome = o.fail(j, status, started, err, "", tmpOutput)
		}
	}()

	j.logger.Info("mux job started",
		logging.String(logging.FieldEventType, "job_started"),
		logging.String("output_name", j.session.OutputName),
	)

	settings := j.session.Preferences.Resolve(session.ConfiguredSettings(o.cfg))
	userDir := session.UserDir(o.cfg.Paths.DownloadDir, userID)
	videoPath := session.AssetPath(o.cfg.Paths.DownloadDir, userID, j.session.Video)
	subtitlePath := session.AssetPath(o.cfg.Paths.DownloadDir, userID, j.session.Subtitle)
	tmpOutput = filepath.Join(userDir, "."+j.info.ID+mode.Ext())

	args, err := o.buildArgs(mode, videoPath, subtitlePath, tmpOutput, settings)
	if err != nil {
		return o.fail(j, status, started, err, "", tmpOutput)
	}

	release, err := o.acquire(j, status, header)
	if err != nil {
		return o.fail(j, status, started, err, "", tmpOutput)
	}
	o.setState(j, StateRunning)
	status.Update(j.ctx, header+"\nStarting encoder...")
	metrics.JobsRunning.Inc()
	result, runErr := o.runner.Run(j.ctx, args, func(ctx context.Context, text string) {
		status.Update(ctx, header+"\n"+text)
	})
	metrics.JobsRunning.Dec()
	release()

	switch {
	case runErr != nil && j.ctx.Err() == nil:
		return o.fail(j, status, started, runErr, "", tmpOutput)
	case result.Cancelled || j.ctx.Err() != nil:
		return o.fail(j, status, started, services.Wrap(services.ErrCancelled, "jobs", "run", "cancelled", nil), "", tmpOutput)
	case result.ExitCode != 0:
		class, hint := ffmpeg.Classify(result.Diagnostics)
		metrics.EncoderFailuresTotal.WithLabelValues(class).Inc()
		err := services.Wrap(services.ErrExternalTool, "jobs", "ffmpeg",
			fmt.Sprintf("ffmpeg exited with status %d", result.ExitCode), nil)
		logging.ErrorWithContext(j.logger, "ffmpeg failed", "ffmpeg_failed",
			logging.Int("exit_code", result.ExitCode),
			logging.String("failure_class", class),
			logging.String(logging.FieldErrorHint, hint),
			logging.String("diagnostics_tail", ffmpeg.Tail(result.Diagnostics, 500)),
		)
		out := o.fail(j, status, started, err, ffmpeg.Tail(result.Diagnostics, o.tailLimit()), tmpOutput)
		out.ExitCode = result.ExitCode
		return out
	}

	return o.finalize(j, status, started, tmpOutput)
}

func (o *Orchestrator) buildArgs(mode Mode, video, subtitle, output string, settings session.Settings) ([]string, error) {
	switch mode {
	case ModeSoftMux:
		args, err := ffmpeg.SoftMuxArgs(ffmpeg.SoftMuxRequest{Video: video, Subtitle: subtitle, Output: output})
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "jobs", "softmux", "unsupported subtitle format", err)
		}
		return args, nil
	case ModeHardMux:
		if err := o.checkFont(); err != nil {
			return nil, err
		}
		width, height, ok := session.Dimensions(settings.Resolution)
		return ffmpeg.HardMuxArgs(ffmpeg.HardMuxRequest{
			Video:    video,
			Subtitle: subtitle,
			Output:   output,
			Encoding: ffmpeg.Encoding{
				CRF:        settings.CRF,
				Preset:     settings.Preset,
				Codec:      settings.Codec,
				FontSize:   settings.FontSize,
				Width:      width,
				Height:     height,
				KeepSource: !ok,
			},
			Style: ffmpeg.Style{
				FontPath:    o.cfg.Encoder.FontPath,
				FontName:    o.cfg.Encoder.FontName,
				FontColor:   o.cfg.Encoder.FontColor,
				BorderWidth: o.cfg.Encoder.BorderWidth,
				Watermark:   o.cfg.Encoder.Watermark,
			},
		}), nil
	case ModeExtract:
		return ffmpeg.ExtractArgs(video, output), nil
	default:
		return nil, services.Wrap(services.ErrValidation, "jobs", "build args", fmt.Sprintf("unknown mode %q", mode), nil)
	}
}

func (o *Orchestrator) checkFont() error {
	info, err := os.Stat(o.cfg.Encoder.FontPath)
	if err == nil && !info.IsDir() {
		return nil
	}
	o.logger.Error("subtitle font missing",
		logging.String(logging.FieldEventType, "font_missing"),
		logging.String("font_path", o.cfg.Encoder.FontPath),
		logging.String(logging.FieldErrorHint, "install the font or fix encoder.font_path"),
	)
	return services.Wrap(services.ErrConfiguration, "jobs", "hardmux",
		"subtitle font is missing on the server, hardmux is unavailable", nil)
}

// acquire takes an encoder slot, telling the user when they have to wait.
func (o *Orchestrator) acquire(j *job, status *transport.StatusMessage, header string) (func(), error) {
	release := func() { <-o.slots }
	select {
	case o.slots <- struct{}{}:
		return release, nil
	default:
	}

	o.setState(j, StateWaiting)
	status.Update(j.ctx, header+"\nWaiting for a free encoder slot...")
	metrics.JobsWaiting.Inc()
	defer metrics.JobsWaiting.Dec()
	select {
	case o.slots <- struct{}{}:
		return release, nil
	case <-j.ctx.Done():
		return nil, services.Wrap(services.ErrCancelled, "jobs", "acquire slot", "cancelled", j.ctx.Err())
	}
}

func (o *Orchestrator) tailLimit() int {
	if o.cfg.Jobs.ErrorTailChars > 0 {
		return o.cfg.Jobs.ErrorTailChars
	}
	return 3000
}

// failureText joins headline and diagnostics tail so the whole message fits
// in limit runes; the tail gives way first.
func failureText(headline, tail string, limit int) string {
	headline = textutil.TruncateRunes(headline, limit)
	if tail == "" {
		return headline
	}
	budget := limit - utf8.RuneCountInString(headline) - 2
	if budget <= 0 {
		return headline
	}
	return headline + "\n\n" + ffmpeg.Tail(tail, budget)
}

// finalize renames the output, delivers it, and cleans up.
func (o *Orchestrator) finalize(j *job, status *transport.StatusMessage, started time.Time, tmpOutput string) Outcome {
	o.setState(j, StateFinalizing)
	ctx := context.WithoutCancel(j.ctx)
	mode := j.info.Mode
	userDir := session.UserDir(o.cfg.Paths.DownloadDir, j.info.UserID)

	target, releaseName := o.names.claim(userDir, finalName(j.session.OutputName, mode.Ext()))
	defer releaseName()
	if err := os.Rename(tmpOutput, target); err != nil {
		return o.fail(j, status, started, services.Wrap(services.ErrTransient, "jobs", "finalize", "rename output", err), "", tmpOutput)
	}

	elapsed := o.now().Sub(started)
	caption := fmt.Sprintf("%s finished in %s", mode.Label(), ffmpeg.FormatDuration(elapsed))
	status.Update(ctx, mode.Label()+" finished\nUploading "+filepath.Base(target)+"...")

	lastStep := int64(-1)
	deliverErr := o.transport.Deliver(ctx, j.info.UserID, target, caption, func(sent, total int64) {
		if total <= 0 {
			return
		}
		step := sent * 10 / total
		if step == lastStep {
			return
		}
		lastStep = step
		status.Update(ctx, fmt.Sprintf("%s finished\nUploading: %d%%", mode.Label(), step*10))
	})
	metrics.ObserveDelivery(deliverErr)

	outcome := Outcome{
		JobID:   j.info.ID,
		UserID:  j.info.UserID,
		Mode:    mode,
		State:   StateDone,
		Output:  filepath.Base(target),
		Elapsed: elapsed,
	}
	if deliverErr != nil {
		logging.ErrorWithContext(j.logger, "delivery failed", "delivery_failed",
			logging.Error(deliverErr),
			logging.String(logging.FieldErrorHint, "check transport connectivity; the output was discarded"),
		)
		o.message(ctx, j, "Upload failed, please try again later.")
		outcome.Reason = "delivery failed"
	} else {
		status.Update(ctx, caption)
	}

	o.cleanup(ctx, j, target, tmpOutput)
	o.setState(j, StateDone)
	metrics.ObserveJob(string(mode), metrics.ResultCompleted, elapsed)
	o.publish(ctx, j, notifications.EventJobCompleted, notifications.Payload{
		"file":     outcome.Output,
		"duration": ffmpeg.FormatDuration(elapsed),
	})
	j.logger.Info("mux job completed",
		logging.String(logging.FieldEventType, "job_completed"),
		logging.String("output", outcome.Output),
		logging.Duration("elapsed", elapsed),
		logging.Bool("delivered", deliverErr == nil),
	)
	return outcome
}

// fail reports err to the user, cleans up, and returns a Failed outcome.
func (o *Orchestrator) fail(j *job, status *transport.StatusMessage, started time.Time, err error, tail string, paths ...string) Outcome {
	ctx := context.WithoutCancel(j.ctx)
	mode := j.info.Mode
	elapsed := o.now().Sub(started)
	o.setState(j, StateFailed)

	result := metrics.ResultFailed
	reason := services.UserMessage(err)
	if errors.Is(err, services.ErrCancelled) {
		result = metrics.ResultCancelled
		reason = "cancelled"
	}

	text := failureText(fmt.Sprintf("%s failed: %s", mode.Label(), userDetail(err)), tail, o.tailLimit())
	status.Update(ctx, mode.Label()+" failed")
	o.message(ctx, j, text)

	o.cleanup(ctx, j, paths...)
	metrics.ObserveJob(string(mode), result, elapsed)
	o.publish(ctx, j, notifications.EventJobFailed, notifications.Payload{"error": err.Error()})

	logging.WarnWithContext(j.logger, "mux job failed", "job_failed",
		logging.Error(err),
		logging.String("reason", reason),
		logging.Duration("elapsed", elapsed),
		logging.String(logging.FieldErrorHint, failureHint(err)),
		logging.String(logging.FieldImpact, "user must upload again"),
	)
	return Outcome{
		JobID:   j.info.ID,
		UserID:  j.info.UserID,
		Mode:    mode,
		State:   StateFailed,
		Elapsed: elapsed,
		Reason:  reason,
		Err:     err,
	}
}

// userDetail is UserMessage, except encoder failures keep their exit status.
func userDetail(err error) string {
	if errors.Is(err, services.ErrExternalTool) {
		msg := err.Error()
		if idx := strings.LastIndex(msg, ": "); idx >= 0 {
			return msg[idx+2:]
		}
		return msg
	}
	return services.UserMessage(err)
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrConfiguration):
		return "check encoder settings in the config file"
	case errors.Is(err, services.ErrExternalTool):
		return "inspect the ffmpeg diagnostics sent to the user"
	case errors.Is(err, services.ErrCancelled):
		return "cancelled by request"
	default:
		return "check logs for details"
	}
}

// cleanup deletes job artifacts. Softmux and hardmux also delete both inputs
// and erase the session; extract keeps the session and its video.
func (o *Orchestrator) cleanup(ctx context.Context, j *job, extra ...string) {
	paths := append([]string(nil), extra...)
	if j.info.Mode != ModeExtract {
		paths = append(paths,
			session.AssetPath(o.cfg.Paths.DownloadDir, j.info.UserID, j.session.Video),
			session.AssetPath(o.cfg.Paths.DownloadDir, j.info.UserID, j.session.Subtitle),
		)
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(j.logger, "failed to delete job artifact", "cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
				logging.String(logging.FieldImpact, "disk space held by a finished job"),
			)
		}
	}
	if j.info.Mode == ModeExtract {
		return
	}
	if err := o.store.Erase(ctx, j.info.UserID); err != nil {
		logging.ErrorWithContext(j.logger, "failed to erase session", "session_erase_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'submux session erase' for this user"),
		)
	}
}

func (o *Orchestrator) message(ctx context.Context, j *job, text string) {
	if _, err := o.transport.Send(ctx, j.info.UserID, text); err != nil {
		logging.WarnWithContext(j.logger, "failed to message user", "message_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check transport connectivity"),
			logging.String(logging.FieldImpact, "user did not see the job result"),
		)
	}
}

func (o *Orchestrator) publish(ctx context.Context, j *job, event notifications.Event, payload notifications.Payload) {
	payload["user"] = j.info.UserID
	payload["mode"] = string(j.info.Mode)
	if err := o.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(j.logger, "operator notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}
