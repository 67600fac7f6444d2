// Package api exposes the testing engine over HTTP: project management,
// test lifecycle, live progress polling and SSE streaming.
package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptstrike/promptstrike/pkg/defaults"
	"github.com/promptstrike/promptstrike/pkg/payloads"
	"github.com/promptstrike/promptstrike/pkg/run"
	"github.com/promptstrike/promptstrike/pkg/store"
	"github.com/promptstrike/promptstrike/pkg/target"
)

// Config wires the server's collaborators.
type Config struct {
	Orchestrator *run.Orchestrator
	Store        store.Store

	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler

	// PollInterval is the SSE refresh cadence. Zero means the default.
	PollInterval time.Duration
}

// Server is the HTTP front of the engine.
type Server struct {
	engine *gin.Engine
	orch   *run.Orchestrator
	store  store.Store
	log    *slog.Logger
	poll   time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates the server and registers all routes.
func New(cfg Config, opts ...Option) *Server {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.SSEPollInterval
	}

	s := &Server{
		engine: gin.New(),
		orch:   cfg.Orchestrator,
		store:  cfg.Store,
		log:    slog.Default(),
		poll:   cfg.PollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(gin.Recovery())

	s.engine.GET("/healthz", s.health)
	if cfg.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/projects", s.createProject)
		v1.GET("/projects", s.listProjects)
		v1.GET("/projects/:id", s.getProject)
		v1.GET("/projects/:id/findings", s.listFindings)

		v1.POST("/tests", s.startTest)
		v1.GET("/tests/:id", s.getTest)
		v1.DELETE("/tests/:id", s.cancelTest)
		v1.GET("/tests/:id/results", s.listResults)
		v1.GET("/tests/:id/progress", s.getProgress)
		v1.GET("/tests/:id/stream", s.streamTest)
	}

	return s
}

// Handler returns the HTTP handler for mounting or serving.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.Info("api listening", slog.String("addr", addr))
	return s.engine.Run(addr)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": defaults.Version})
}

type createProjectRequest struct {
	Name        string        `json:"name" binding:"required"`
	Description string        `json:"description"`
	Target      target.Config `json:"target"`
}

func (s *Server) createProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Target.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project := store.NewProject(req.Name, req.Target)
	project.Description = req.Description
	if err := s.store.CreateProject(c.Request.Context(), project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (s *Server) listProjects(c *gin.Context) {
	projects, err := s.store.ListProjects(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (s *Server) getProject(c *gin.Context) {
	project, err := s.store.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) listFindings(c *gin.Context) {
	findings, err := s.store.ListFindingsByProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"findings": findings})
}

type startTestRequest struct {
	ProjectID          string   `json:"project_id" binding:"required"`
	Name               string   `json:"name"`
	PayloadIDs         []string `json:"payload_ids"`
	Categories         []string `json:"categories"`
	RateLimit          int      `json:"rate_limit"`
	TimeoutSeconds     int      `json:"timeout_seconds"`
	Retries            int      `json:"retries"`
	StopOnFirstSuccess bool     `json:"stop_on_first_success"`
	DryRun             bool     `json:"dry_run"`
}

func (s *Server) startTest(c *gin.Context) {
	var req startTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := run.StartConfig{
		Name:               req.Name,
		Selection:          payloads.SelectionFromStrings(req.PayloadIDs, req.Categories),
		RateLimit:          req.RateLimit,
		Timeout:            time.Duration(req.TimeoutSeconds) * time.Second,
		Retries:            req.Retries,
		StopOnFirstSuccess: req.StopOnFirstSuccess,
		DryRun:             req.DryRun,
	}

	testRun, err := s.orch.StartTest(c.Request.Context(), req.ProjectID, cfg)
	if err != nil {
		switch {
		case errors.Is(err, run.ErrProjectNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		case errors.Is(err, payloads.ErrEmptySelection):
			c.JSON(http.StatusBadRequest, gin.H{"error": "selection matches no payloads"})
		case errors.Is(err, payloads.ErrPayloadNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusAccepted, testRun)
}

func (s *Server) getTest(c *gin.Context) {
	detail, err := s.orch.GetTestRunDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.runError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) cancelTest(c *gin.Context) {
	err := s.orch.CancelTest(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "cancelling"})
	case errors.Is(err, run.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "test run not found"})
	case errors.Is(err, run.ErrRunFinished):
		c.JSON(http.StatusConflict, gin.H{"error": "test run already finished"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) listResults(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.orch.GetTestRun(c.Request.Context(), id); err != nil {
		s.runError(c, err)
		return
	}
	results, err := s.store.ListResultsByRun(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) getProgress(c *gin.Context) {
	snap, err := s.orch.GetProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.runError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// streamTest pushes progress snapshots over SSE until the run reaches a
// terminal state or the client disconnects.
func (s *Server) streamTest(c *gin.Context) {
	id := c.Param("id")
	snap, err := s.orch.GetProgressForSSE(c.Request.Context(), id)
	if err != nil {
		s.runError(c, err)
		return
	}

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.SSEvent("progress", snap)
	if snap.IsComplete {
		c.SSEvent("complete", snap)
		return
	}
	c.Writer.Flush()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-ticker.C:
		}

		snap, err := s.orch.GetProgressForSSE(c.Request.Context(), id)
		if err != nil {
			c.SSEvent("error", gin.H{"error": err.Error()})
			return false
		}
		c.SSEvent("progress", snap)
		if snap.IsComplete {
			c.SSEvent("complete", snap)
			return false
		}
		return true
	})
}

func (s *Server) runError(c *gin.Context, err error) {
	if errors.Is(err, run.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "test run not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
