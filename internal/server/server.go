package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/auctions-etl/internal/batch"
	"github.com/joseph-ayodele/auctions-etl/internal/coordinator"
	"github.com/joseph-ayodele/auctions-etl/internal/storage"
)

// Runner is the pipeline entry point the server triggers.
type Runner interface {
	Run(ctx context.Context, n coordinator.Notification) (*coordinator.RunSummary, error)
	LastRun() *coordinator.RunSummary
}

// Lister counts bucket backlog for the status endpoint.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// StatusReader exposes per-batch outcomes. Fire-and-forget runs report
// nothing in their run summary, so this is where their results surface.
type StatusReader interface {
	Snapshot() []batch.Outcome
}

// Server exposes the webhook and monitoring endpoints.
type Server struct {
	runner   Runner
	lister   Lister
	statuses StatusReader
	secret   string
	enabled  bool
	logger   *slog.Logger
}

func New(runner Runner, lister Lister, statuses StatusReader, secret string, enabled bool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		runner:   runner,
		lister:   lister,
		statuses: statuses,
		secret:   secret,
		enabled:  enabled,
		logger:   logger,
	}
}

// Router builds the gin engine. Recovery only; request logging goes through
// slog so daemon output stays structured.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/healthz", s.handleHealth)
	api := r.Group("/api")
	{
		api.POST("/webhook", s.handleWebhook)
		api.GET("/status", s.handleStatus)
	}
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http.request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleWebhook accepts a notification and starts the run in the
// background. The secret is checked before anything else happens, so a
// mismatched caller learns nothing and changes nothing.
func (s *Server) handleWebhook(c *gin.Context) {
	var n coordinator.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(n.Secret), []byte(s.secret)) != 1 {
		s.logger.Warn("webhook.rejected", "files", len(n.PDFFiles))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if len(n.PDFFiles) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files"})
		return
	}

	s.logger.Info("webhook.accepted", "files", len(n.PDFFiles))
	go func() {
		if _, err := s.runner.Run(context.Background(), n); err != nil {
			s.logger.Error("webhook.run_failed", "error", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "files": len(n.PDFFiles)})
}

// handleStatus reports the processing flag, bucket backlog, and the last
// run. It is the JSON contract a monitoring sheet polls.
func (s *Server) handleStatus(c *gin.Context) {
	ctx := c.Request.Context()
	backlog := gin.H{}
	for label, prefix := range map[string]string{
		"unprocessed": storage.PrefixUnprocessed,
		"processed":   storage.PrefixProcessed,
		"errored":     storage.PrefixErrored,
	} {
		keys, err := s.lister.List(ctx, prefix)
		if err != nil {
			s.logger.Error("status.list_failed", "prefix", prefix, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
			return
		}
		backlog[label] = len(keys)
	}

	resp := gin.H{
		"processing_enabled": s.enabled,
		"backlog":            backlog,
	}
	if last := s.runner.LastRun(); last != nil {
		resp["last_run"] = last
	}
	if s.statuses != nil {
		resp["batches"] = s.statuses.Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}
