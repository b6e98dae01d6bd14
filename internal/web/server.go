package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ai-mockup-studio/internal/catalog"
	"ai-mockup-studio/internal/mockup"
	"ai-mockup-studio/internal/session"
	"ai-mockup-studio/internal/synthesis"
	"ai-mockup-studio/internal/upload"
)

//go:embed static/*
var staticFS embed.FS

// maxUploadBytes leaves room for multipart framing around a full-size design.
const maxUploadBytes = upload.MaxSize + 1<<20

type Options struct {
	Sessions  *session.Store
	Validator *upload.Validator
	Logger    *slog.Logger
	// BaseContext parents the background generations. Cancelling it aborts
	// every call in flight.
	BaseContext context.Context
	// RequestTimeout bounds one background generation.
	RequestTimeout time.Duration
}

type Server struct {
	sessions       *session.Store
	validator      *upload.Validator
	logger         *slog.Logger
	baseCtx        context.Context
	requestTimeout time.Duration
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	validator := opts.Validator
	if validator == nil {
		validator = upload.NewValidator()
	}
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return &Server{
		sessions:       opts.Sessions,
		validator:      validator,
		logger:         logger,
		baseCtx:        baseCtx,
		requestTimeout: timeout,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, s.accessLog)

	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/scenario", s.handleScenario)
			r.Put("/category", s.handleCategory)
			r.Patch("/settings", s.handleSettings)
			r.Put("/asset", s.handleAttachAsset)
			r.Delete("/asset", s.handleClearAsset)
			r.Post("/scenes", s.handleGenerateScenes)
			r.Post("/selection", s.handleSelection)
			r.Post("/mockup", s.handleGenerateMockup)
			r.Get("/scenes/{index}", s.handleSceneImage)
			r.Get("/artifact", s.handleArtifact)
		})
	})

	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	r.Handle("/*", http.FileServer(http.FS(staticSub)))

	return r
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalogFromRegistry())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.logger.Info("session created", "session", sess.ID)
	writeJSON(w, http.StatusCreated, sessionFrom(sess.ID, sess.Orchestrator.Snapshot()))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionFrom(sess.ID, sess.Orchestrator.Snapshot()))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.sessions.Delete(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req scenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := sess.Orchestrator.SelectScenario(strings.TrimSpace(req.ID)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionFrom(sess.ID, sess.Orchestrator.Snapshot()))
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key := catalog.DesignType(strings.ToLower(strings.TrimSpace(req.Key)))
	if err := sess.Orchestrator.SelectCategory(key); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionFrom(sess.ID, sess.Orchestrator.Snapshot()))
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req settingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	o := sess.Orchestrator
	if req.AspectRatio != nil {
		if err := o.SetAspectRatio(*req.AspectRatio); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.VariationCount != nil {
		if err := o.SetVariationCount(*req.VariationCount); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Style != nil {
		if err := o.SetStyle(strings.TrimSpace(*req.Style)); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.BackgroundBlur != nil {
		o.SetBackgroundBlur(*req.BackgroundBlur)
	}
	if req.HighQuality != nil {
		o.SetHighQuality(*req.HighQuality)
	}
	writeJSON(w, http.StatusOK, sessionFrom(sess.ID, o.Snapshot()))
}

func (s *Server) handleAttachAsset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, synthesis.Validationf("attach_asset", "file exceeds the %d byte limit", upload.MaxSize))
			return
		}
		writeError(w, synthesis.Validationf("attach_asset", "invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("design")
	if err != nil {
		writeError(w, synthesis.Validationf("attach_asset", "missing design file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, synthesis.Validationf("attach_asset", "failed to read design file"))
		return
	}

	asset, err := s.validator.Validate(data, header.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, err)
		return
	}
	sess.Orchestrator.AttachAsset(asset)
	s.logger.Info("design attached", "session", sess.ID, "mime", asset.MimeType, "bytes", asset.Size)
	writeJSON(w, http.StatusOK, sessionFrom(sess.ID, sess.Orchestrator.Snapshot()))
}

func (s *Server) handleClearAsset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Orchestrator.ClearAsset()
	writeJSON(w, http.StatusOK, sessionFrom(sess.ID, sess.Orchestrator.Snapshot()))
}

func (s *Server) handleGenerateScenes(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.start(w, sess, "scenes", sess.Orchestrator.StartScenes)
}

func (s *Server) handleGenerateMockup(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.start(w, sess, "mockup", sess.Orchestrator.StartMockup)
}

// start runs a generation in the background and answers 202 with the
// pending snapshot. Clients poll GET /api/sessions/{id} for the outcome.
func (s *Server) start(w http.ResponseWriter, sess session.Session, what string, fn func(context.Context) (<-chan error, error)) {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.requestTimeout)
	done, err := fn(ctx)
	if err != nil {
		cancel()
		writeError(w, err)
		return
	}

	go func() {
		defer cancel()
		if err := <-done; err != nil && !errors.Is(err, mockup.ErrSuperseded) {
			s.logger.Warn(what+" failed", "session", sess.ID, "kind", synthesis.KindOf(err).String(), "err", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, sessionFrom(sess.ID, sess.Orchestrator.Snapshot()))
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req selectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Index == nil {
		writeError(w, synthesis.Validationf("select_scene", "index is required"))
		return
	}
	if err := sess.Orchestrator.SelectScene(*req.Index); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionFrom(sess.ID, sess.Orchestrator.Snapshot()))
}

func (s *Server) handleSceneImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	snap := sess.Orchestrator.Snapshot()
	if err != nil || idx < 0 || idx >= len(snap.Variations) {
		writeJSON(w, http.StatusNotFound, apiError{Error: "scene not found"})
		return
	}
	writeImage(w, snap.Variations[idx], "")
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	snap := sess.Orchestrator.Snapshot()
	if snap.Artifact == nil {
		writeJSON(w, http.StatusNotFound, apiError{Error: "no mockup yet"})
		return
	}
	writeImage(w, *snap.Artifact, "ai-mockup.png")
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "session not found"})
		return session.Session{}, false
	}
	return sess, true
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"dur_ms", time.Since(start).Milliseconds(),
		)
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, mockup.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, synthesis.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusConflict {
		writeJSON(w, status, apiError{Error: "a generation is already in progress", Kind: "busy"})
		return
	}
	writeJSON(w, status, errorFrom(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeImage(w http.ResponseWriter, img synthesis.Image, attachment string) {
	mime := img.MimeType
	if mime == "" {
		mime = "image/png"
	}
	w.Header().Set("content-type", mime)
	w.Header().Set("content-length", strconv.Itoa(len(img.Data)))
	if attachment != "" {
		w.Header().Set("content-disposition", `attachment; filename="`+attachment+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, synthesis.Validationf("decode", "invalid JSON body: %v", err))
		return false
	}
	return true
}
