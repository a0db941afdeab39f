// Package http exposes the Twilio webhooks, the dashboard read API and the
// operational endpoints over gin.
package http

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"janani-health/internal/callflow"
	"janani-health/internal/core"
	"janani-health/internal/db"
	"janani-health/internal/telephony"
	"janani-health/pkg"
)

// SummaryRunner runs one period's summary batch on demand.
type SummaryRunner interface {
	Run(ctx context.Context, period pkg.PeriodType) (core.RunReport, error)
}

// Server bundles together the dependencies required by the handlers.
type Server struct {
	Calls     *callflow.Controller
	Store     db.Store
	Notifier  db.Notifier
	Clips     telephony.ClipStore
	Summaries SummaryRunner
	// Validator checks Twilio signatures; nil disables the check.
	Validator *telephony.Validator
	BaseURL   string
	Log       *zap.SugaredLogger
	Now       func() time.Time

	started time.Time
}

// NewServer constructs a Server.
func NewServer(s Server) *Server {
	if s.Log == nil {
		s.Log = zap.NewNop().Sugar()
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	s.started = s.Now()
	return &s
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(s.Log), cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	r.GET("/", s.handleIndex)
	r.GET("/api/status", s.handleStatus)

	webhooks := r.Group("/api")
	webhooks.Use(TwilioSignature(s.Validator, s.BaseURL, s.Log))
	{
		webhooks.POST("/inbound/call", s.handleInboundCall)
		webhooks.POST("/inbound/sms", s.handleInboundSMS)
		webhooks.POST("/voice/greeting", s.handleGreeting)
		webhooks.POST("/voice/recording", s.handleRecording)
		webhooks.POST("/voice/recording-status", s.handleRecordingStatus)
	}

	// Audio is fetched by Twilio with a plain GET; ids are unguessable.
	r.GET("/api/voice/audio/:id", s.handleAudio)

	api := r.Group("/api")
	{
		api.POST("/voice/trigger", s.handleTrigger)
		api.GET("/dashboard/:identifier", s.handleDashboard)
		api.GET("/dashboard/:identifier/summary/doctor", s.handleDoctorSummary)
		api.GET("/dashboard/:identifier/summary/family", s.handleFamilySummary)
		api.GET("/dashboard/:identifier/history", s.handleHistory)
		api.GET("/dashboard/:identifier/stream", s.handleStream)
		api.POST("/summaries/:period/run", s.handleRunSummaries)
	}
	return r
}
