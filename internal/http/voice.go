package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"janani-health/internal/callflow"
	"janani-health/internal/telephony"
)

func twimlResponse(c *gin.Context, xml string, err error) {
	if err != nil {
		c.String(http.StatusInternalServerError, "twiml: %v", err)
		return
	}
	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(xml))
}

func callbackFrom(c *gin.Context) callflow.Callback {
	attempt, _ := strconv.Atoi(c.Query("attempt"))
	return callflow.Callback{
		CallSid:         c.PostForm("CallSid"),
		From:            c.PostForm("From"),
		To:              c.PostForm("To"),
		Direction:       c.PostForm("Direction"),
		RecordingSid:    c.PostForm("RecordingSid"),
		RecordingURL:    c.PostForm("RecordingUrl"),
		RecordingStatus: c.PostForm("RecordingStatus"),
		LanguageHint:    c.Query("lang"),
		Attempt:         attempt,
	}
}

func (s *Server) handleInboundCall(c *gin.Context) {
	cb := callbackFrom(c)
	s.Log.Infow("incoming call", "phone", cb.From, "callSid", cb.CallSid)
	xml, err := s.Calls.InboundCall(cb)
	twimlResponse(c, xml, err)
}

func (s *Server) handleInboundSMS(c *gin.Context) {
	from := c.PostForm("From")
	s.Log.Infow("incoming sms", "phone", from)
	xml, err := s.Calls.InboundSMS(from)
	twimlResponse(c, xml, err)
}

func (s *Server) handleGreeting(c *gin.Context) {
	attempt, _ := strconv.Atoi(c.Query("attempt"))
	xml, err := s.Calls.Greeting(attempt, c.Query("followup") == "1")
	twimlResponse(c, xml, err)
}

func (s *Server) handleRecording(c *gin.Context) {
	xml, err := s.Calls.RecordingComplete(c.Request.Context(), callbackFrom(c))
	twimlResponse(c, xml, err)
}

func (s *Server) handleRecordingStatus(c *gin.Context) {
	s.Calls.Status(c.Request.Context(), callbackFrom(c))
	xml, err := telephony.Empty()
	twimlResponse(c, xml, err)
}

func (s *Server) handleAudio(c *gin.Context) {
	audio, err := s.Clips.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, telephony.ErrClipNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		s.Log.Errorw("load clip failed", "id", c.Param("id"), "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "audio/wav", audio)
}

type triggerRequest struct {
	Phone string `json:"phone" binding:"required"`
}

func (s *Server) handleTrigger(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "phone is required", "error": err.Error()})
		return
	}
	phone := strings.TrimSpace(req.Phone)
	sid, err := s.Calls.Trigger(c.Request.Context(), phone)
	if errors.Is(err, callflow.ErrCallsDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Outbound calls are disabled", "error": err.Error()})
		return
	}
	if err != nil {
		s.Log.Errorw("trigger call failed", "phone", phone, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"message": "Failed to trigger call", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "callSid": sid})
}
