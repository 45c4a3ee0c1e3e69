package ffmpeg_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"submux/internal/ffmpeg"
	"submux/internal/logging"
	"submux/internal/services"
	"submux/internal/testsupport"
)

const progressScript = `
printf 'Input #0, matroska, from in.mkv:\n' >&2
i=1
while [ $i -le 6 ]; do
  printf 'frame=%d fps=24 size=%dkB time=00:00:0%d.00 bitrate=100kbits/s speed=1.0x\r' $i $i $i >&2
  i=$((i+1))
done
printf '\nvideo:10kB audio:1kB\n' >&2
exit ${EXIT_CODE:-0}
`

type recorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *recorder) sink(_ context.Context, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func stepClock(step time.Duration) func() time.Time {
	current := time.Unix(0, 0)
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}

func TestRunnerPushesEveryProgressLineWithoutThrottle(t *testing.T) {
	bin := testsupport.StubBinary(t, t.TempDir(), "ffmpeg", progressScript)
	runner := ffmpeg.NewRunner(bin, 0, logging.NewNop())
	rec := &recorder{}

	result, err := runner.Run(context.Background(), nil, rec.sink)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("expected success, got %+v", result)
	}
	texts := rec.snapshot()
	if len(texts) != 6 {
		t.Fatalf("expected 6 pushes, got %d: %q", len(texts), texts)
	}
	if texts[0] != "Size: 1kB\nTime: 00:00:01.00\nSpeed: 1.0x" {
		t.Fatalf("unexpected first push %q", texts[0])
	}
	if !strings.HasPrefix(texts[5], "Size: 6kB") {
		t.Fatalf("pushes out of order: %q", texts)
	}
	if !strings.Contains(result.Diagnostics, "Input #0") || !strings.Contains(result.Diagnostics, "video:10kB") {
		t.Fatalf("diagnostics missing lines: %q", result.Diagnostics)
	}
}

func TestRunnerThrottlesPushes(t *testing.T) {
	bin := testsupport.StubBinary(t, t.TempDir(), "ffmpeg", progressScript)
	runner := ffmpeg.NewRunner(bin, 10*time.Second, logging.NewNop())
	runner.WithClock(stepClock(4 * time.Second))
	rec := &recorder{}

	if _, err := runner.Run(context.Background(), nil, rec.sink); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	// Start is t=4; progress lines observe t=8,12,16,20,24,28; pushes land at 16 and 28.
	texts := rec.snapshot()
	if len(texts) != 2 {
		t.Fatalf("expected 2 throttled pushes, got %d: %q", len(texts), texts)
	}
	if !strings.HasPrefix(texts[0], "Size: 3kB") || !strings.HasPrefix(texts[1], "Size: 6kB") {
		t.Fatalf("unexpected pushes %q", texts)
	}
}

func TestRunnerShortRunPushesNothingBeforeInterval(t *testing.T) {
	bin := testsupport.StubBinary(t, t.TempDir(), "ffmpeg", progressScript)
	runner := ffmpeg.NewRunner(bin, 10*time.Second, logging.NewNop())
	rec := &recorder{}

	start := time.Now()
	if _, err := runner.Run(context.Background(), nil, rec.sink); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if time.Since(start) >= 10*time.Second {
		t.Skip("stub ran longer than the throttle interval")
	}
	if texts := rec.snapshot(); len(texts) != 0 {
		t.Fatalf("expected no pushes inside the first interval, got %q", texts)
	}
}

func TestRunnerReportsNonZeroExitAsResult(t *testing.T) {
	bin := testsupport.StubBinary(t, t.TempDir(), "ffmpeg", "echo 'Subtitle codec 94213 is not supported' >&2\nexit 3")
	runner := ffmpeg.NewRunner(bin, 0, logging.NewNop())

	result, err := runner.Run(context.Background(), []string{"-i", "x"}, nil)
	if err != nil {
		t.Fatalf("non-zero exit must not be an error: %v", err)
	}
	if result.ExitCode != 3 || result.Succeeded() {
		t.Fatalf("unexpected result %+v", result)
	}
	if class, _ := ffmpeg.Classify(result.Diagnostics); class != ffmpeg.FailureSubtitle {
		t.Fatalf("unexpected classification %q", class)
	}
}

func TestRunnerMissingBinaryIsError(t *testing.T) {
	runner := ffmpeg.NewRunner(filepath.Join(t.TempDir(), "nope"), 0, logging.NewNop())
	_, err := runner.Run(context.Background(), nil, nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestRunnerCancellationKillsProcess(t *testing.T) {
	bin := testsupport.StubBinary(t, t.TempDir(), "ffmpeg", "printf 'frame=1 size=1kB\\n' >&2\nexec sleep 30")
	runner := ffmpeg.NewRunner(bin, 0, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	pushed := make(chan struct{}, 1)
	go func() {
		<-pushed
		cancel()
	}()

	start := time.Now()
	result, err := runner.Run(ctx, nil, func(context.Context, string) {
		select {
		case pushed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !result.Cancelled || result.Succeeded() {
		t.Fatalf("expected cancelled result, got %+v", result)
	}
	if time.Since(start) > 15*time.Second {
		t.Fatalf("cancellation took too long: %s", time.Since(start))
	}
}

func TestTail(t *testing.T) {
	text := strings.Repeat("a", 5000) + "END"
	got := ffmpeg.Tail(text, 3000)
	if len(got) != 3000 || !strings.HasSuffix(got, "END") {
		t.Fatalf("unexpected tail length %d", len(got))
	}
	if ffmpeg.Tail("short", 3000) != "short" {
		t.Fatal("short text must be returned whole")
	}
	if got := ffmpeg.Tail("héllo wörld", 5); got != "wörld" {
		t.Fatalf("tail must count characters, got %q", got)
	}
}
