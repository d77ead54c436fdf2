// Package server exposes the proxy's HTTP surface: the ePOS print
// endpoint that terminals POST to, health and metrics endpoints, a
// WebSocket job-event feed, and the admin journal API.
package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/priont/epos-bridge/internal/config"
	"github.com/priont/epos-bridge/internal/epos"
	"github.com/priont/epos-bridge/internal/journal"
	"github.com/priont/epos-bridge/internal/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const contentTypeXML = "text/xml; charset=utf-8"

// Sender delivers an encoded command stream to the printer. Satisfied by
// *device.Session.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
}

// Server is the HTTP front end.
type Server struct {
	router   *gin.Engine
	sender   Sender
	journal  *journal.Journal // nil when disabled
	hub      *hub
	cfg      *config.Config
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// New assembles the router. journal may be nil to disable the admin job
// API.
func New(cfg *config.Config, sender Sender, jnl *journal.Journal, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	observability.RegisterMetrics()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestLogger(logger))
	router.Use(observability.RequestMetricsMiddleware())
	router.Use(corsMiddleware())

	server := &Server{
		router:  router,
		sender:  sender,
		journal: jnl,
		hub:     newHub(),
		cfg:     cfg,
		log:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Terminals connect from file:// and LAN origins
			},
		},
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleHealth)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws", s.handleWebSocket)

	admin := s.router.Group("/admin", s.adminAuth())
	admin.GET("/jobs", s.handleListJobs)
	admin.GET("/jobs/:id", s.handleGetJob)

	// Terminals POST to whatever CGI path their configuration names
	// (usually /cgi-bin/epos/service.cgi); only the body matters.
	s.router.POST("/*path", s.handlePrint)
}

// handleHealth answers the liveness probe terminals and the original
// clients poke.
func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "Printer proxy running")
}

// handlePrint is the ePOS endpoint: parse the SOAP body, encode it to
// ESC/POS, deliver it, and acknowledge with the fixed envelope.
func (s *Server) handlePrint(c *gin.Context) {
	jobID := uuid.NewString()
	received := time.Now().UTC()
	origin := c.ClientIP()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", jobID).Msg("failed to read request body")
		s.finishRejected(c, jobID, received, origin, err)
		return
	}

	job, err := epos.Parse(body, epos.ParseDefaults{PaperWidth: s.cfg.Printer.PaperWidth})
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", jobID).Str("origin", origin).Msg("rejected unparseable job")
		s.finishRejected(c, jobID, received, origin, err)
		return
	}

	rasters, pulses := job.Summary()
	s.hub.broadcast(eventJobReceived, gin.H{
		"id":      jobID,
		"rasters": rasters,
		"pulses":  pulses,
	})

	payload := epos.Encode(job, s.cfg.Printer.PaperWidth)

	start := time.Now()
	sendErr := s.sender.Send(c.Request.Context(), payload)
	sendDuration := time.Since(start)

	if sendErr != nil {
		s.log.Error().Err(sendErr).
			Str("job_id", jobID).
			Str("origin", origin).
			Int("rasters", rasters).
			Int("pulses", pulses).
			Int("bytes", len(payload)).
			Msg("job delivery failed")
		observability.RecordJob(observability.OutcomeFailed, len(payload), sendDuration)
		s.record(jobID, received, origin, rasters, pulses, len(payload), observability.OutcomeFailed, sendErr.Error())
		s.hub.broadcast(eventJobFailed, gin.H{
			"id":    jobID,
			"bytes": len(payload),
			"error": sendErr.Error(),
		})
		// The SDK inspects the envelope's success flag, not the HTTP
		// status, so failures still answer 200.
		c.Data(http.StatusOK, contentTypeXML, epos.FailureResponse(epos.CodeDeviceError))
		return
	}

	s.log.Info().
		Str("job_id", jobID).
		Str("origin", origin).
		Int("rasters", rasters).
		Int("pulses", pulses).
		Int("bytes", len(payload)).
		Dur("send_duration", sendDuration).
		Msg("job printed")
	observability.RecordJob(observability.OutcomePrinted, len(payload), sendDuration)
	s.record(jobID, received, origin, rasters, pulses, len(payload), observability.OutcomePrinted, "")
	s.hub.broadcast(eventJobPrinted, gin.H{
		"id":      jobID,
		"rasters": rasters,
		"pulses":  pulses,
		"bytes":   len(payload),
	})
	c.Data(http.StatusOK, contentTypeXML, epos.SuccessResponse())
}

// finishRejected answers a request that never produced a job.
func (s *Server) finishRejected(c *gin.Context, jobID string, received time.Time, origin string, cause error) {
	observability.RecordJob(observability.OutcomeRejected, 0, 0)
	s.record(jobID, received, origin, 0, 0, 0, observability.OutcomeRejected, cause.Error())
	s.hub.broadcast(eventJobFailed, gin.H{
		"id":    jobID,
		"error": cause.Error(),
	})
	c.Data(http.StatusBadRequest, contentTypeXML, epos.FailureResponse(epos.CodeSchemaError))
}

// record writes a journal entry when the journal is enabled. Failures
// are logged, never surfaced; the journal must not affect printing.
func (s *Server) record(jobID string, received time.Time, origin string, rasters, pulses, bytes int, outcome, errMsg string) {
	if s.journal == nil {
		return
	}
	entry := journal.Entry{
		ID:         jobID,
		ReceivedAt: received,
		Origin:     origin,
		Rasters:    rasters,
		Pulses:     pulses,
		Bytes:      bytes,
		Outcome:    outcome,
		Error:      errMsg,
	}
	if err := s.journal.Record(context.Background(), entry); err != nil {
		s.log.Error().Err(err).Str("job_id", jobID).Msg("failed to journal job")
	}
}

// Run serves plain HTTP on addr.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// RunTLS serves HTTPS on addr with the given certificate pair.
func (s *Server) RunTLS(addr, certFile, keyFile string) error {
	return s.router.RunTLS(addr, certFile, keyFile)
}

// corsMiddleware answers preflights and mirrors the caller's origin so
// browser-based POS pages can reach the proxy with credentials.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = "*"
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}
