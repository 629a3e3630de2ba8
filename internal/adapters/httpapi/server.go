package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/core"
)

// maxBatchSize caps one batch request.
const maxBatchSize = 50

// Server is the inbound HTTP adapter exposing the scoring service.
type Server struct {
	service    *core.CredibilityService
	history    core.HistoryStore
	logger     *zap.Logger
	listenAddr string
	httpServer *http.Server
}

// NewServer creates the HTTP adapter. mode is a gin mode string
// ("release" or "debug"); history may be nil.
func NewServer(service *core.CredibilityService, history core.HistoryStore, logger *zap.Logger, listenAddr, mode string) *Server {
	if mode != "" {
		gin.SetMode(mode)
	}
	return &Server{
		service:    service,
		history:    history,
		logger:     logger,
		listenAddr: listenAddr,
	}
}

type detectRequest struct {
	Text       string            `json:"text" binding:"required"`
	Behavioral behavioralPayload `json:"behavioral"`
}

type behavioralPayload struct {
	AccountVerified bool     `json:"account_verified"`
	Tags            []string `json:"tags"`
	LikeCount       int      `json:"like_count"`
	ShareCount      int      `json:"share_count"`
	CommentCount    int      `json:"comment_count"`
}

type batchRequest struct {
	Texts []string `json:"texts" binding:"required"`
}

func (p behavioralPayload) toSignals() core.BehavioralSignals {
	return core.BehavioralSignals{
		AccountVerified: p.AccountVerified,
		Tags:            p.Tags,
		LikeCount:       p.LikeCount,
		ShareCount:      p.ShareCount,
		CommentCount:    p.CommentCount,
	}
}

// Routes builds the gin engine. Exposed separately so tests can drive
// the handlers without a listening socket.
func (s *Server) Routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)

	api := router.Group("/api/v1/detect")
	{
		api.POST("/text", s.handleDetectText)
		api.POST("/batch", s.handleDetectBatch)
		api.GET("/stats", s.handleStats)
		api.GET("/history", s.handleHistory)
	}

	return router
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.listenAddr,
		Handler: s.Routes(),
	}

	s.logger.Info("HTTP API starting", zap.String("address", s.listenAddr))

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleDetectText(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	verdict, err := s.service.ScoreContent(c.Request.Context(), req.Text, req.Behavioral.toSignals())
	if err != nil {
		if errors.Is(err, core.ErrEmptyText) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text is empty"})
			return
		}
		s.logger.Error("Scoring failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, verdict)
}

func (s *Server) handleDetectBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Texts) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "texts is required"})
		return
	}
	if len(req.Texts) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many texts in one batch"})
		return
	}

	verdicts, err := s.service.ScoreBatch(c.Request.Context(), req.Texts, core.BehavioralSignals{})
	if err != nil {
		if errors.Is(err, core.ErrEmptyText) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "batch contains empty text"})
			return
		}
		s.logger.Error("Batch scoring failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": verdicts, "count": len(verdicts)})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Stats())
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}

	limit, offset := 20, 0
	if v, err := parseQueryInt(c, "limit"); err == nil && v > 0 {
		limit = v
	}
	if v, err := parseQueryInt(c, "offset"); err == nil && v >= 0 {
		offset = v
	}

	records, err := s.history.Recent(c.Request.Context(), limit, offset)
	if err != nil {
		s.logger.Error("History query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

func parseQueryInt(c *gin.Context, key string) (int, error) {
	return strconv.Atoi(c.Query(key))
}

func (s *Server) handleHealth(c *gin.Context) {
	status := s.service.HealthCheck(c.Request.Context())
	code := http.StatusOK
	if status.Status == "error" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
