// Package server exposes the runtime over HTTP with gin.
//
// Routes live under /v1. Errors use one envelope:
//
//	{"error": {"code": "not_found", "message": "..."}}
//
// where code is derived from the core error kind of the failure.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/TSGCFO/langchain-agent/agent"
	"github.com/TSGCFO/langchain-agent/analytics"
	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/logging"
)

const shutdownGrace = 5 * time.Second

// Backend is the runtime surface served over HTTP. *langchainagent.Runtime
// implements it.
type Backend interface {
	ExecuteTask(ctx context.Context, description string) (*core.Task, error)
	Query(ctx context.Context, text string, opts agent.QueryOptions) (string, error)
	Agents() []core.AgentInfo
	Publish(ctx context.Context, msg core.Message) error
	LookupMessage(ctx context.Context, id string) (core.Message, error)
	Analyzer() *analytics.Analyzer
	Curator() *analytics.Curator
}

// Options configures the HTTP handler.
type Options struct {
	// AllowedOrigins for CORS. Empty or "*" allows every origin.
	AllowedOrigins []string
	// WindowDays is the analytics window used when a request omits
	// window_days.
	WindowDays int
	// Training is used for POST /v1/training requests without a body.
	Training analytics.TrainingConfig
	Logger   logging.Logger
}

// Server routes HTTP requests to a Backend.
type Server struct {
	backend Backend
	opts    Options
	engine  *gin.Engine
}

// New builds the gin engine for backend.
func New(backend Backend, optFns ...func(o *Options)) *Server {
	opts := Options{
		WindowDays: 7,
		Training:   analytics.DefaultTrainingConfig(),
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(opts.Logger))
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	s := &Server{backend: backend, opts: opts, engine: r}

	r.GET("/healthz", s.health)
	v1 := r.Group("/v1")
	v1.POST("/tasks", s.createTask)
	v1.POST("/queries", s.createQuery)
	v1.GET("/agents", s.listAgents)
	v1.POST("/messages", s.publishMessage)
	v1.GET("/messages/:id", s.getMessage)
	v1.GET("/analytics/tools", s.toolStats)
	v1.GET("/analytics/reasoning", s.reasoning)
	v1.GET("/analytics/performance", s.performance)
	v1.POST("/training", s.prepareTraining)
	return s
}

// Handler returns the http.Handler serving every route.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.opts.Logger.Info("HTTP server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status())
	}
}

type taskRequest struct {
	Description string `json:"description" binding:"required"`
}

type queryRequest struct {
	Query        string `json:"query" binding:"required"`
	Context      string `json:"context"`
	MaxDocuments int    `json:"max_documents" binding:"gte=0"`
}

type queryResponse struct {
	Answer string `json:"answer"`
}

type messageRequest struct {
	Type          core.MessageType `json:"type" binding:"required"`
	SenderID      string           `json:"sender_id"`
	CorrelationID string           `json:"correlation_id"`
	Priority      *core.Priority   `json:"priority"`
	Payload       any              `json:"payload"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "agents": len(s.backend.Agents())})
}

func (s *Server) createTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	task, err := s.backend.ExecuteTask(c.Request.Context(), req.Description)
	if task == nil {
		s.fail(c, err)
		return
	}
	resp := core.TaskResponse{TaskID: task.ID, Status: task.CurrentStatus(), Result: task.Result()}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status, _ = classify(err)
	}
	c.JSON(status, resp)
}

func (s *Server) createQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	answer, err := s.backend.Query(c.Request.Context(), req.Query, agent.QueryOptions{
		Context:      req.Context,
		MaxDocuments: req.MaxDocuments,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, queryResponse{Answer: answer})
}

func (s *Server) listAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": s.backend.Agents()})
}

func (s *Server) publishMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	msg := core.NewMessage(req.Type, req.SenderID, req.Payload)
	if req.CorrelationID != "" {
		msg.Metadata.CorrelationID = req.CorrelationID
	}
	if req.Priority != nil {
		msg.Metadata.Priority = *req.Priority
	}
	if err := s.backend.Publish(c.Request.Context(), msg); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": msg.ID, "correlation_id": msg.Metadata.CorrelationID})
}

func (s *Server) getMessage(c *gin.Context) {
	msg, err := s.backend.LookupMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (s *Server) toolStats(c *gin.Context) {
	days, ok := s.windowDays(c)
	if !ok {
		return
	}
	stats, err := s.backend.Analyzer().AnalyzeToolUsage(c.Request.Context(), days)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"window_days": days, "tools": stats})
}

func (s *Server) reasoning(c *gin.Context) {
	out, err := s.backend.Analyzer().AnalyzeReasoning(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) performance(c *gin.Context) {
	days, ok := s.windowDays(c)
	if !ok {
		return
	}
	out, err := s.backend.Analyzer().CalculatePerformanceMetrics(c.Request.Context(), days)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) prepareTraining(c *gin.Context) {
	cfg := s.opts.Training
	if c.Request.ContentLength != 0 {
		cfg = analytics.TrainingConfig{}
		if err := c.ShouldBindJSON(&cfg); err != nil {
			abortWithError(c, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}
	set, err := s.backend.Curator().PrepareTrainingData(c.Request.Context(), cfg)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

func (s *Server) windowDays(c *gin.Context) (int, bool) {
	raw := c.Query("window_days")
	if raw == "" {
		return s.opts.WindowDays, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "bad_request", "window_days must be an integer")
		return 0, false
	}
	return days, true
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.opts.Logger.Error("Request failed", "path", c.FullPath(), "error", err.Error())
	}
	abortWithError(c, status, code, err.Error())
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Code: code, Message: message}})
}

var errorStatus = []struct {
	err    error
	status int
}{
	{core.ErrValidation, http.StatusBadRequest},
	{core.ErrNotFound, http.StatusNotFound},
	{core.ErrToolNotFound, http.StatusUnprocessableEntity},
	{core.ErrCircularDependency, http.StatusUnprocessableEntity},
	{core.ErrSubtaskCountExceeded, http.StatusUnprocessableEntity},
	{core.ErrParse, http.StatusBadGateway},
	{core.ErrMalformedOutput, http.StatusBadGateway},
	{core.ErrRateLimited, http.StatusTooManyRequests},
	{core.ErrProvider, http.StatusBadGateway},
	{core.ErrTimeout, http.StatusGatewayTimeout},
	{core.ErrNoAgentsAvailable, http.StatusServiceUnavailable},
	{core.ErrNotReady, http.StatusServiceUnavailable},
	{core.ErrUnsupportedOperation, http.StatusNotImplemented},
	{core.ErrToolExecution, http.StatusInternalServerError},
}

// classify maps err to an HTTP status and an error code named after the
// matching error kind.
func classify(err error) (int, string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status, strings.ReplaceAll(e.err.Error(), " ", "_")
		}
	}
	return http.StatusInternalServerError, "internal_error"
}
