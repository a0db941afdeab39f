package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"janani-health/internal/aggregate"
	"janani-health/internal/core"
	"janani-health/internal/db"
	"janani-health/pkg"
)

const (
	noDoctorData = "No patient interactions recorded yet."
	noFamilyData = "No health records available yet. Ask her to talk to Janani!"
)

// lookup loads the record for the :identifier param. A missing record is
// reported as nil without error.
func (s *Server) lookup(c *gin.Context) (*pkg.UserHealthRecord, bool) {
	rec, err := s.Store.Get(c.Request.Context(), c.Param("identifier"))
	if errors.Is(err, db.ErrNotFound) {
		return nil, true
	}
	if err != nil {
		s.Log.Errorw("load health record failed", "identifier", c.Param("identifier"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to load health record", "error": err.Error()})
		return nil, false
	}
	return rec, true
}

func (s *Server) handleDashboard(c *gin.Context) {
	rec, ok := s.lookup(c)
	if !ok {
		return
	}
	if rec == nil {
		c.JSON(http.StatusOK, gin.H{
			"found":   false,
			"message": "No health records found for this user.",
			"data":    aggregate.Dashboard(nil),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": true, "data": aggregate.Dashboard(rec)})
}

func (s *Server) handleDoctorSummary(c *gin.Context) {
	rec, ok := s.lookup(c)
	if !ok {
		return
	}
	if rec == nil || len(rec.History) == 0 {
		c.JSON(http.StatusOK, gin.H{"summary": noDoctorData})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": aggregate.Doctor(rec.History, s.Now())})
}

func (s *Server) handleFamilySummary(c *gin.Context) {
	rec, ok := s.lookup(c)
	if !ok {
		return
	}
	if rec == nil || len(rec.History) == 0 {
		c.JSON(http.StatusOK, gin.H{"summary": noFamilyData})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": aggregate.Family(rec.History, s.Now())})
}

func (s *Server) handleHistory(c *gin.Context) {
	rec, ok := s.lookup(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(aggregate.DefaultPageSize)))
	var history []pkg.Interaction
	if rec != nil {
		history = rec.History
	}
	c.JSON(http.StatusOK, aggregate.Page(history, page, limit))
}

// handleStream pushes a fresh dashboard whenever the identifier's record
// changes, starting with the current one.
func (s *Server) handleStream(c *gin.Context) {
	if s.Notifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "live updates are not enabled"})
		return
	}
	rec, ok := s.lookup(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	updates, err := s.Notifier.Listen(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to subscribe", "error": err.Error()})
		return
	}

	phone := c.Param("identifier")
	if rec != nil {
		phone = rec.PhoneNumber
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	if err := writeEvent(c.Writer, aggregate.Dashboard(rec)); err != nil {
		return
	}
	c.Writer.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case changed, open := <-updates:
			if !open {
				return
			}
			if changed != phone {
				continue
			}
			fresh, ok := s.reload(c, changed)
			if !ok {
				continue
			}
			if err := writeEvent(c.Writer, aggregate.Dashboard(fresh)); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

func (s *Server) reload(c *gin.Context, phone string) (*pkg.UserHealthRecord, bool) {
	rec, err := s.Store.Get(c.Request.Context(), phone)
	if err != nil {
		s.Log.Warnw("reload for stream failed", "phone", phone, "error", err)
		return nil, false
	}
	return rec, true
}

func writeEvent(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: dashboard\ndata: %s\n\n", data)
	return err
}

func (s *Server) handleRunSummaries(c *gin.Context) {
	period, err := core.ParsePeriod(c.Param("period"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	report, err := s.Summaries.Run(c.Request.Context(), period)
	switch {
	case errors.Is(err, core.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
	case err != nil:
		s.Log.Errorw("summary run failed", "period", period, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Summary run failed", "error": err.Error()})
	default:
		c.JSON(http.StatusOK, report)
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to the Janani maternal health API",
		"status":  "Online",
		"endpoints": []string{
			"/api/status",
			"/api/voice/greeting",
			"/api/dashboard/:identifier",
		},
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	store := "connected"
	if err := s.Store.Ping(c.Request.Context()); err != nil {
		store = "disconnected"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "Janani backend is live",
		"store":        store,
		"server_time":  s.Now().UTC().Format(time.RFC3339),
		"uptime":       s.Now().Sub(s.started).Round(time.Second).String(),
		"webhook_base": s.BaseURL,
	})
}
