package intake

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"submux/internal/metrics"
	"submux/internal/services"
	"submux/internal/session"
)

// FetchProgress receives downloaded and total byte counts.
type FetchProgress func(done, total int64)

const fetchChunkSize = 1 << 20

// FetchURL downloads a video from rawURL into the user's session. The server
// must announce a Content-Length no larger than intake.max_url_bytes.
func (s *Service) FetchURL(ctx context.Context, userID, rawURL, customName string, progress FetchProgress) (*Result, error) {
	ctx = services.WithUserID(ctx, userID)
	fail := func(err error) (*Result, error) {
		metrics.ObserveUpload(string(KindVideo), "url", false, 0)
		s.logRejected(ctx, userID, rawURL, err)
		return nil, err
	}

	if custom := strings.TrimSpace(customName); custom != "" {
		if err := session.ValidateOutputName(custom); err != nil {
			return fail(services.Wrap(services.ErrValidation, "intake", "output name",
				fmt.Sprintf("custom filename must be at most %d characters", session.MaxOutputNameLength), err))
		}
	}
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fail(services.Wrap(services.ErrValidation, "intake", "fetch", "only http and https links are supported", nil))
	}

	timeout := s.cfg.URLTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return fail(services.Wrap(services.ErrValidation, "intake", "fetch", "invalid link", err))
	}
	req.Header.Set("User-Agent", "submux/0.1.0")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fail(services.Wrap(services.ErrTransient, "intake", "fetch", "download failed", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(services.Wrap(services.ErrValidation, "intake", "fetch",
			fmt.Sprintf("server answered %d", resp.StatusCode), nil))
	}

	name := remoteFilename(resp, parsed)
	kind, _, err := Classify(name)
	if err != nil {
		return fail(err)
	}
	if kind != KindVideo {
		return fail(services.Wrap(services.ErrValidation, "intake", "fetch", "links must point at an .mp4 or .mkv video", nil))
	}

	size := resp.ContentLength
	if size <= 0 {
		return fail(services.Wrap(services.ErrValidation, "intake", "fetch", "the server did not report a file size", nil))
	}
	if limit := s.cfg.Intake.MaxURLBytes; limit > 0 && size > limit {
		return fail(services.Wrap(services.ErrValidation, "intake", "fetch",
			fmt.Sprintf("file is %s, larger than the %s limit", humanBytes(size), humanBytes(limit)), nil))
	}
	if err := s.preflight(userID, size); err != nil {
		return fail(err)
	}

	tmp, err := s.tempFile(userID)
	if err != nil {
		return fail(err)
	}
	written, err := copyWithProgress(tmp, io.LimitReader(resp.Body, size+1), size, progress)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written != size {
		err = fmt.Errorf("received %d of %d bytes", written, size)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fail(services.Wrap(services.ErrTransient, "intake", "fetch", "download interrupted", err))
	}
	return s.accept(ctx, userID, tmp.Name(), name, customName, "url")
}

// remoteFilename prefers the Content-Disposition filename and falls back to
// the last path segment of the final request URL.
func remoteFilename(resp *http.Response, requested *url.URL) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				return path.Base(name)
			}
		}
	}
	u := requested
	if resp.Request != nil && resp.Request.URL != nil {
		u = resp.Request.URL
	}
	base := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	if base == "/" || base == "." {
		return ""
	}
	return base
}

func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress FetchProgress) (int64, error) {
	buf := make([]byte, fetchChunkSize)
	var done int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return done, werr
			}
			done += int64(n)
			if progress != nil {
				progress(done, total)
			}
		}
		if err == io.EOF {
			return done, nil
		}
		if err != nil {
			return done, err
		}
	}
}

func humanBytes(n int64) string {
	const unit = 1000
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "kMGTPE"[exp])
}
