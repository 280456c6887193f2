// Package voice is the HTTP endpoint the speech recognizer client talks to.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/duetvoice/duet/internal/bus"
	"github.com/duetvoice/duet/internal/config"
	"github.com/duetvoice/duet/internal/shared/llmutils"
)

// Server accepts recognized speech and keeps track of whether the
// recognizer is still pinging.
type Server struct {
	addr    string
	timeout time.Duration
	bus     bus.Bus
	engine  *gin.Engine

	lastPing  atomic.Int64
	connected atomic.Bool

	now func() time.Time
}

func NewServer(cfg config.VoiceConfig, b bus.Bus) *Server {
	timeout := time.Duration(cfg.ClientTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &Server{
		addr:    cfg.ListenAddr,
		timeout: timeout,
		bus:     b,
		now:     time.Now,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Any("/", s.handleRoot)
	r.Any("/is_llm_service_online", s.handlePing)
	r.Any("/voice_input", s.handleVoiceInput)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not Found"})
	})
	s.engine = r
	return s
}

// Mount serves h at path for GET requests, e.g. the transcript feed.
func (s *Server) Mount(path string, h http.Handler) {
	s.engine.GET(path, gin.WrapH(h))
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Connected reports whether the recognizer pinged within the timeout.
func (s *Server) Connected() bool { return s.connected.Load() }

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello, World!"})
}

func (s *Server) handlePing(c *gin.Context) {
	s.lastPing.Store(s.now().UnixNano())
	if !s.connected.Swap(true) {
		slog.Info("Voice input connection established.")
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type voiceInput struct {
	Text string `json:"text"`
}

func (s *Server) handleVoiceInput(c *gin.Context) {
	var in voiceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		slog.Error("voice input: bad request", "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "text is empty"})
		return
	}

	slog.Info("Received voice input", "text", llmutils.Truncate(text, 80))
	if err := s.bus.PublishInbound(c.Request.Context(), bus.NewInboundMessage(bus.SourceVoice, text)); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// checkConnection marks the recognizer disconnected once its pings stop.
func (s *Server) checkConnection() {
	last := s.lastPing.Load()
	if last != 0 && s.now().Sub(time.Unix(0, last)) <= s.timeout {
		return
	}
	if s.connected.Swap(false) {
		slog.Warn("Timeout! Voice input connection lost.", "timeout", s.timeout)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Voice listener started", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("voice listener: %w", err)
		}
		close(errCh)
	}()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case err, ok := <-errCh:
			if ok {
				return err
			}
			return nil
		case <-ticker.C:
			s.checkConnection()
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("Voice listener shutdown", "err", err)
			}
			slog.Info("Voice listener stopped")
			return ctx.Err()
		}
	}
}
