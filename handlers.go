package main

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"regscan/pkg/config"
	"regscan/pkg/extract"
	"regscan/pkg/ocr"
	"regscan/pkg/scan"
)

type server struct {
	scanner *scan.Scanner
	auth    config.AuthConfig
	limiter *rate.Limiter
	log     *zap.Logger
	now     func() time.Time
}

func newServer(sc *scan.Scanner, auth config.AuthConfig, srv config.ServerConfig, log *zap.Logger) *server {
	s := &server{scanner: sc, auth: auth, log: log, now: time.Now}
	if srv.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(srv.RateLimit), max(srv.RateBurst, 1))
	}
	if s.log == nil {
		s.log = zap.L()
	}
	return s
}

func (s *server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))
	s.setupRoutes(r)
	return r
}

func (s *server) setupRoutes(r *gin.Engine) {
	r.POST("/token", s.tokenHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware([]byte(s.auth.JWTSecret)))
	authGroup.GET("/status", s.statusHandler)
	authGroup.POST("/scans", s.rateLimit(), s.scanHandler)
	authGroup.POST("/scans/stream", s.rateLimit(), s.scanStreamHandler)
	authGroup.POST("/scans/terminate", s.terminateHandler)
	authGroup.GET("/history", s.listHistoryHandler)
	authGroup.POST("/history", s.saveHistoryHandler)
	authGroup.DELETE("/history", s.clearHistoryHandler)
	authGroup.DELETE("/history/:id", s.deleteHistoryHandler)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http: request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		if !s.limiter.Allow() {
			retry := math.Ceil(1 / float64(s.limiter.Limit()))
			c.Header("Retry-After", strconv.Itoa(int(max(retry, 1))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many scans, slow down"})
			return
		}
		c.Next()
	}
}

// scanErrorStatus maps a pipeline error to its HTTP status.
func scanErrorStatus(err error) int {
	switch {
	case errors.Is(err, ocr.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case ocr.IsKind(err, ocr.KindValidation):
		return http.StatusBadRequest
	case ocr.IsKind(err, ocr.KindConcurrency):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeScanError(c *gin.Context, err error) {
	status := scanErrorStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("http: scan failed", zap.Error(err))
		c.JSON(status, gin.H{"error": "scan failed"})
		return
	}
	c.JSON(status, gin.H{"error": ocr.Reason(err)})
}

func (s *server) tokenHandler(c *gin.Context) {
	if s.auth.JWTSecret == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "authentication is disabled"})
		return
	}
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := checkOperatorPassword(s.auth.OperatorPasswordHash, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	token, exp, err := issueToken([]byte(s.auth.JWTSecret), s.auth.TokenTTL, s.now())
	if err != nil {
		s.log.Error("http: issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": exp.UTC()})
}

func (s *server) statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": s.scanner.State(), "busy": s.scanner.Busy()})
}

// scanHandler recognizes the uploaded multipart "file" and returns the Result.
func (s *server) scanHandler(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	res, err := s.scanner.Scan(c.Request.Context(), ocr.MultipartSource{Header: fh}, nil)
	if err != nil {
		s.writeScanError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// scanStreamHandler is scanHandler with progress streamed as server-sent
// events ahead of the final "result" event.
func (s *server) scanStreamHandler(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	res, err := s.scanner.Scan(c.Request.Context(), ocr.MultipartSource{Header: fh}, func(p ocr.Progress) {
		c.SSEvent("progress", p)
		c.Writer.Flush()
	})
	if err != nil {
		s.writeScanError(c, err)
		return
	}
	c.SSEvent("result", res)
	c.Writer.Flush()
}

func (s *server) terminateHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"terminated": s.scanner.Terminate()})
}

func (s *server) listHistoryHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.scanner.ListHistory(c.Request.Context()))
}

func (s *server) saveHistoryHandler(c *gin.Context) {
	var req struct {
		ParsedData extract.Record `json:"parsedData"`
		Confidence float64        `json:"confidence"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Confidence < 0 || req.Confidence > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confidence must be between 0 and 100"})
		return
	}
	rec, persisted := s.scanner.SaveRecord(c.Request.Context(), req.ParsedData, req.Confidence)
	c.JSON(http.StatusCreated, gin.H{"record": rec, "persisted": persisted})
}

func (s *server) deleteHistoryHandler(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	s.scanner.DeleteRecord(c.Request.Context(), id)
	c.Status(http.StatusNoContent)
}

func (s *server) clearHistoryHandler(c *gin.Context) {
	s.scanner.ClearHistory(c.Request.Context())
	c.Status(http.StatusNoContent)
}
