package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"submux/internal/api"
	"submux/internal/config"
	"submux/internal/intake"
	"submux/internal/jobs"
	"submux/internal/logging"
	"submux/internal/session"
	"submux/internal/testsupport"
	"submux/internal/transport"
)

const (
	stubFFmpeg = `for last; do :; done
printf 'muxed' > "$last"`
	validSRT = "1\n00:00:01,000 --> 00:00:02,000\nhello\n"
)

type harness struct {
	cfg     *config.Config
	store   *session.Store
	mailbox *transport.Mailbox
	orch    *jobs.Orchestrator
	server  *api.Server
	http    *httptest.Server
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpeg(stubFFmpeg), testsupport.WithFont())
	cfg.Encoder.ProgressIntervalSeconds = 0
	if mutate != nil {
		mutate(cfg)
	}
	store := testsupport.MustOpenStore(t, cfg)
	mailbox, err := transport.NewMailbox(cfg.Paths.OutboxDir, logging.NewNop())
	if err != nil {
		t.Fatalf("NewMailbox: %v", err)
	}
	orch := jobs.New(cfg, store, mailbox, logging.NewNop())
	svc := intake.New(cfg, store, logging.NewNop(), intake.WithJobGuard(orch.Busy))
	server := api.New(api.Deps{
		Config:  cfg,
		Store:   store,
		Intake:  svc,
		Jobs:    orch,
		Mailbox: mailbox,
		Logger:  logging.NewNop(),
	})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		ts.Close()
		server.Close()
		orch.Wait()
	})
	return &harness{cfg: cfg, store: store, mailbox: mailbox, orch: orch, server: server, http: ts}
}

func (h *harness) do(t *testing.T, method, path string, body io.Reader, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.http.URL+path, body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	resp, err := h.http.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) doJSON(t *testing.T, method, path string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(data)
	}
	return h.do(t, method, path, body, http.Header{"Content-Type": {"application/json"}})
}

func (h *harness) upload(t *testing.T, user, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return h.do(t, http.MethodPost, "/api/users/"+user+"/uploads", &buf,
		http.Header{"Content-Type": {writer.FormDataContentType()}})
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status %d, want %d (body %s)", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
}

func TestHealthzIsOpenWhenTokenSet(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.API.Token = "secret" })
	resp := h.do(t, http.MethodGet, "/healthz", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestBearerTokenRequired(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.API.Token = "secret" })
	expectStatus(t, h.do(t, http.MethodGet, "/api/users/1/session", nil, nil), http.StatusUnauthorized)
	expectStatus(t, h.do(t, http.MethodGet, "/api/users/1/session", nil, http.Header{"Authorization": {"Bearer wrong"}}), http.StatusUnauthorized)
	expectStatus(t, h.do(t, http.MethodGet, "/api/users/1/session", nil, http.Header{"Authorization": {"Bearer secret"}}), http.StatusOK)
}

func TestAllowListRejectsOtherUsers(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.API.AllowedUsers = []string{"1"} })
	expectStatus(t, h.do(t, http.MethodGet, "/api/users/2/session", nil, nil), http.StatusForbidden)
	expectStatus(t, h.do(t, http.MethodGet, "/api/users/1/session", nil, nil), http.StatusOK)
}

func TestUploadMuxAndDownloadOnce(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.upload(t, "42", "Holiday.mkv", "video")
	expectStatus(t, resp, http.StatusCreated)
	uploaded := decode[api.UploadResponse](t, resp)
	if uploaded.Kind != "video" || uploaded.OutputName != "Holiday.mkv" {
		t.Fatalf("unexpected upload response %+v", uploaded)
	}
	if len(uploaded.Session.Missing) != 1 || uploaded.Session.Missing[0] != "subtitle" {
		t.Fatalf("expected subtitle missing, got %v", uploaded.Session.Missing)
	}

	expectStatus(t, h.upload(t, "42", "Holiday.srt", validSRT), http.StatusCreated)

	resp = h.doJSON(t, http.MethodPost, "/api/users/42/jobs", api.JobRequest{Mode: "softmux"})
	expectStatus(t, resp, http.StatusAccepted)
	info := decode[jobs.JobInfo](t, resp)
	if info.Mode != jobs.ModeSoftMux || info.ID == "" {
		t.Fatalf("unexpected job info %+v", info)
	}
	h.orch.Wait()

	listing := decode[map[string][]transport.Delivery](t, h.do(t, http.MethodGet, "/api/users/42/deliveries", nil, nil))
	if len(listing["deliveries"]) != 1 || listing["deliveries"][0].Name != "Holiday.mkv" {
		t.Fatalf("unexpected deliveries %+v", listing)
	}

	resp = h.do(t, http.MethodGet, "/api/users/42/deliveries/Holiday.mkv", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "muxed" {
		t.Fatalf("unexpected download body %q", body)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "Holiday.mkv") {
		t.Fatalf("unexpected disposition %q", resp.Header.Get("Content-Disposition"))
	}
	expectStatus(t, h.do(t, http.MethodGet, "/api/users/42/deliveries/Holiday.mkv", nil, nil), http.StatusNotFound)

	messages := decode[map[string][]transport.Message](t, h.do(t, http.MethodGet, "/api/users/42/messages", nil, nil))
	if len(messages["messages"]) == 0 {
		t.Fatal("expected status messages for the job")
	}

	view := decode[api.SessionView](t, h.do(t, http.MethodGet, "/api/users/42/session", nil, nil))
	if view.Video != nil || view.Subtitle != nil {
		t.Fatalf("session should be erased after the job: %+v", view)
	}
}

func TestStartJobReportsMissingAssets(t *testing.T) {
	h := newHarness(t, nil)
	expectStatus(t, h.upload(t, "5", "clip.mp4", "video"), http.StatusCreated)

	resp := h.doJSON(t, http.MethodPost, "/api/users/5/jobs", api.JobRequest{Mode: "hardmux"})
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	body := decode[map[string]any](t, resp)
	missing, _ := body["missing"].([]any)
	if len(missing) != 1 || missing[0] != "subtitle" {
		t.Fatalf("unexpected missing list %v", body)
	}

	expectStatus(t, h.doJSON(t, http.MethodPost, "/api/users/5/jobs", api.JobRequest{Mode: "burn"}), http.StatusBadRequest)
	expectStatus(t, h.do(t, http.MethodDelete, "/api/users/5/jobs", nil, nil), http.StatusNotFound)
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	h := newHarness(t, nil)
	resp := h.upload(t, "6", "movie.avi", "video")
	expectStatus(t, resp, http.StatusBadRequest)
	view := decode[api.SessionView](t, h.do(t, http.MethodGet, "/api/users/6/session", nil, nil))
	if view.Video != nil {
		t.Fatal("rejected upload must not touch the session")
	}
}

func TestPreferencesSetAndCycle(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.doJSON(t, http.MethodPut, "/api/users/7/preferences", map[string]string{"crf": "28", "resolution": "original"})
	expectStatus(t, resp, http.StatusOK)
	prefs := decode[api.PreferencesResponse](t, resp)
	if prefs.Settings.CRF != 28 || prefs.Settings.Resolution != "original" || prefs.Settings.Preset != "ultrafast" {
		t.Fatalf("unexpected settings %+v", prefs.Settings)
	}
	if len(prefs.Options["codec"]) == 0 {
		t.Fatal("expected codec options")
	}

	expectStatus(t, h.doJSON(t, http.MethodPut, "/api/users/7/preferences", map[string]string{"crf": "99"}), http.StatusBadRequest)
	expectStatus(t, h.doJSON(t, http.MethodPut, "/api/users/7/preferences", map[string]string{"bitrate": "1"}), http.StatusBadRequest)

	resp = h.doJSON(t, http.MethodPost, "/api/users/7/preferences/codec/cycle", nil)
	expectStatus(t, resp, http.StatusOK)
	cycled := decode[api.CycleResponse](t, resp)
	if cycled.Value != "libx265" {
		t.Fatalf("expected libx265 after libx264, got %q", cycled.Value)
	}

	stored := decode[api.PreferencesResponse](t, h.do(t, http.MethodGet, "/api/users/7/preferences", nil, nil))
	if stored.Settings.Codec != "libx265" || stored.Settings.CRF != 28 {
		t.Fatalf("preferences not persisted: %+v", stored.Settings)
	}
}

func TestOutputNameValidation(t *testing.T) {
	h := newHarness(t, nil)
	expectStatus(t, h.upload(t, "8", "clip.mp4", "video"), http.StatusCreated)

	resp := h.doJSON(t, http.MethodPut, "/api/users/8/output-name", api.OutputNameRequest{Name: "Renamed"})
	expectStatus(t, resp, http.StatusOK)
	if view := decode[api.SessionView](t, resp); view.OutputName != "Renamed" {
		t.Fatalf("unexpected output name %q", view.OutputName)
	}
	long := api.OutputNameRequest{Name: strings.Repeat("a", session.MaxOutputNameLength+1)}
	expectStatus(t, h.doJSON(t, http.MethodPut, "/api/users/8/output-name", long), http.StatusBadRequest)
}

func TestDeleteSession(t *testing.T) {
	h := newHarness(t, nil)
	expectStatus(t, h.upload(t, "9", "clip.mp4", "video"), http.StatusCreated)
	expectStatus(t, h.do(t, http.MethodDelete, "/api/users/9/session", nil, nil), http.StatusNoContent)
	expectStatus(t, h.do(t, http.MethodDelete, "/api/users/9/session", nil, nil), http.StatusNotFound)
}

func TestURLUploadReportsThroughMessages(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote-video"))
	}))
	defer remote.Close()

	h := newHarness(t, nil)
	resp := h.doJSON(t, http.MethodPost, "/api/users/10/uploads/url", api.URLUploadRequest{URL: remote.URL + "/clip.mp4"})
	expectStatus(t, resp, http.StatusAccepted)

	received := func() bool {
		for _, msg := range h.mailbox.Messages("10") {
			if strings.Contains(msg.Text, "Video received") {
				return true
			}
		}
		return false
	}
	deadline := time.Now().Add(5 * time.Second)
	for !received() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !received() {
		t.Fatalf("expected a received message, got %+v", h.mailbox.Messages("10"))
	}

	sess, err := h.store.Get(t.Context(), "10")
	if err != nil || sess == nil || sess.Video == nil {
		t.Fatalf("expected fetched video in session, got %+v (%v)", sess, err)
	}
	if sess.OutputName != "clip.mp4" {
		t.Fatalf("unexpected output name %q", sess.OutputName)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	expectStatus(t, h.do(t, http.MethodGet, "/api/users/1/session", nil, nil), http.StatusOK)
	resp := h.do(t, http.MethodGet, "/metrics", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `submux_http_requests_total{method="GET",route="/api/users/{user}/session"`) {
		t.Fatal("expected route-labelled request counter")
	}
}
