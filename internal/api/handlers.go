package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"

	"submux/internal/fileutil"
	"submux/internal/intake"
	"submux/internal/jobs"
	"submux/internal/logging"
	"submux/internal/services"
	"submux/internal/session"
	"submux/internal/subtitles"
	"submux/internal/transport"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, HealthResponse{Status: "ok", ActiveJobs: len(s.jobs.Active())})
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, JobsResponse{Jobs: s.jobs.Active()})
}

// handleUpload streams a multipart "file" part into intake. The custom output
// name comes from the "name" query parameter or a "name" part sent before the
// file.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "expected a multipart/form-data body")
		return
	}
	customName := r.URL.Query().Get("name")
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeError(w, s.logger, http.StatusBadRequest, "malformed multipart body")
			return
		}
		switch part.FormName() {
		case "name":
			value, _ := io.ReadAll(io.LimitReader(part, 1024))
			customName = string(value)
		case "file":
			res, err := s.intake.AcceptReader(r.Context(), user, part, part.FileName(), customName)
			_ = part.Close()
			if err != nil {
				writeServiceError(w, r, s.logger, err)
				return
			}
			writeJSON(w, s.logger, http.StatusCreated, UploadResponse{
				Kind:       string(res.Kind),
				Size:       res.Size,
				OutputName: res.OutputName,
				Warnings:   res.Warnings,
				Session:    s.view(user, res.Session),
			})
			return
		}
		_ = part.Close()
	}
	writeError(w, s.logger, http.StatusBadRequest, `multipart field "file" is required`)
}

// handleURLUpload starts a background fetch. Progress and the outcome are
// reported through the user's status messages.
func (s *Server) handleURLUpload(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	var req URLUploadRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, s.logger, http.StatusBadRequest, "url is required")
		return
	}
	if s.jobs.Busy(user) {
		writeServiceError(w, r, s.logger, jobs.ErrJobInProgress)
		return
	}

	ctx := services.WithUserID(s.ctx, user)
	if id, ok := services.RequestIDFromContext(r.Context()); ok {
		ctx = services.WithRequestID(ctx, id)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		status := transport.NewStatusMessage(ctx, s.outbound, user, "Downloading video...", s.logger)
		lastStep := int64(-1)
		res, err := s.intake.FetchURL(ctx, user, req.URL, req.Name, func(done, total int64) {
			if total <= 0 {
				return
			}
			step := done * 20 / total
			if step == lastStep {
				return
			}
			lastStep = step
			status.Update(ctx, fmt.Sprintf("Downloading video: %d%%", step*5))
		})
		if err != nil {
			status.Update(ctx, "Download failed: "+services.UserMessage(err))
			return
		}
		status.Update(ctx, receivedText(res))
	}()
	writeJSON(w, s.logger, http.StatusAccepted, URLUploadResponse{Status: "downloading"})
}

func receivedText(res *intake.Result) string {
	text := fmt.Sprintf("Video received. Output will be saved as %s.", res.OutputName)
	if res.Session.Complete() {
		return text + " Both files are ready; start a job."
	}
	return text + " Now upload the subtitle file."
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	sess, err := s.store.Get(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, s.view(user, sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	removed, err := s.intake.Discard(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if !removed {
		writeError(w, s.logger, http.StatusNotFound, "no session for this user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOutputName(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	var req OutputNameRequest
	if !s.decode(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if err := session.ValidateOutputName(name); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SetOutputName(r.Context(), user, name); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	s.handleGetSession(w, r)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	prefs, ok := s.preferences(w, r, user)
	if !ok {
		return
	}
	s.writePreferences(w, prefs)
}

// handlePutPreferences applies a {"field": "value"} object. Nothing is stored
// unless every field validates.
func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	var body map[string]string
	if !s.decode(w, r, &body) {
		return
	}
	prefs, ok := s.preferences(w, r, user)
	if !ok {
		return
	}
	for key, value := range body {
		field, err := session.ParseField(key)
		if err == nil {
			err = prefs.Set(field, value)
		}
		if err != nil {
			writeError(w, s.logger, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := s.store.SetPreferences(r.Context(), user, prefs); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	s.writePreferences(w, prefs)
}

func (s *Server) handleCyclePreference(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user := vars["user"]
	field, err := session.ParseField(vars["field"])
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, err.Error())
		return
	}
	prefs, ok := s.preferences(w, r, user)
	if !ok {
		return
	}
	value, err := prefs.Cycle(field, session.ConfiguredSettings(s.cfg))
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SetPreferences(r.Context(), user, prefs); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, CycleResponse{Field: string(field), Value: value})
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	var req JobRequest
	if !s.decode(w, r, &req) {
		return
	}
	mode, err := jobs.ParseMode(req.Mode)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	info, err := s.jobs.Start(r.Context(), user, mode)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusAccepted, info)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	if err := s.jobs.Cancel(user); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	writeJSON(w, s.logger, http.StatusOK, map[string][]transport.Message{"messages": s.mailbox.Messages(user)})
}

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	writeJSON(w, s.logger, http.StatusOK, map[string][]transport.Delivery{"deliveries": s.mailbox.Deliveries(user)})
}

// handleDownload serves a delivery once and removes the staged file.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user, name := vars["user"], vars["name"]
	delivery, err := s.mailbox.Claim(user, name)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	defer func() {
		if err := fileutil.RemoveIfExists(delivery.Path()); err != nil {
			logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "failed to remove served delivery", "delivery_cleanup_failed",
				logging.String("path", delivery.Path()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the file from the outbox manually"),
				logging.String(logging.FieldImpact, "disk space held by a delivered file"),
			)
		}
	}()

	file, err := os.Open(delivery.Path())
	if err != nil {
		writeServiceError(w, r, s.logger, services.Wrap(services.ErrNotFound, "api", "download", "delivery file is gone", nil))
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": delivery.Name}))
	if delivery.Caption != "" {
		w.Header().Set("X-Caption", delivery.Caption)
	}
	http.ServeContent(w, r, delivery.Name, info.ModTime(), file)
	logging.WithContext(r.Context(), s.logger).Info("delivery served",
		logging.String(logging.FieldEventType, "delivery_served"),
		logging.String("name", delivery.Name),
		logging.Int64("size_bytes", info.Size()),
	)
}

func (s *Server) preferences(w http.ResponseWriter, r *http.Request, user string) (session.Preferences, bool) {
	sess, err := s.store.Get(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return session.Preferences{}, false
	}
	if sess == nil {
		return session.Preferences{}, true
	}
	return sess.Preferences, true
}

func (s *Server) writePreferences(w http.ResponseWriter, prefs session.Preferences) {
	options := make(map[string][]string, len(session.Fields))
	for _, field := range session.Fields {
		options[string(field)] = session.Options(field)
	}
	writeJSON(w, s.logger, http.StatusOK, PreferencesResponse{
		Settings: prefs.Resolve(session.ConfiguredSettings(s.cfg)),
		Options:  options,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// view renders sess for clients. A nil session reports both assets missing.
func (s *Server) view(user string, sess *session.Session) SessionView {
	view := SessionView{UserID: user, Missing: sess.Missing()}
	prefs := session.Preferences{}
	if sess != nil {
		prefs = sess.Preferences
		view.OutputName = sess.OutputName
		if sess.Video != nil {
			view.Video = &AssetView{OriginalName: sess.Video.OriginalName, Format: sess.Video.Ext()}
		}
		if sess.Subtitle != nil {
			view.Subtitle = &AssetView{Format: subtitleFormat(sess.Subtitle)}
		}
		updated := sess.UpdatedAt
		view.UpdatedAt = &updated
	}
	view.Settings = prefs.Resolve(session.ConfiguredSettings(s.cfg))
	if info, ok := s.jobs.Job(user); ok {
		view.Job = &info
	}
	return view
}

func subtitleFormat(asset *session.Asset) string {
	format, err := subtitles.ParseFormat(asset.Ext())
	if err != nil {
		return asset.Ext()
	}
	return string(format)
}
