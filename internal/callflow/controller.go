// Package callflow drives a telephony session: greeting, recording, the
// processing pipeline and the spoken reply, looping back for another turn.
package callflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"janani-health/internal/core"
	"janani-health/internal/dedup"
	"janani-health/internal/speech"
	"janani-health/internal/telephony"
)

// Route paths the controller points Twilio at.
const (
	GreetingPath  = "/api/voice/greeting"
	RecordingPath = "/api/voice/recording"
	StatusPath    = "/api/voice/recording-status"
	AudioPath     = "/api/voice/audio/"
)

// ErrCallsDisabled is returned when no outbound caller is configured.
var ErrCallsDisabled = errors.New("outbound calls are not configured")

// Callback holds the webhook fields the controller reads.
type Callback struct {
	CallSid         string
	From            string
	To              string
	Direction       string
	RecordingSid    string
	RecordingURL    string
	RecordingStatus string
	// LanguageHint is optional; empty means auto-detect.
	LanguageHint string
	// Attempt is the no-input attempt of the greeting that recorded.
	Attempt int
}

// Caller returns the mother's number: the dialled party on call-backs, the
// dialling party otherwise.
func (cb Callback) Caller() string {
	if strings.HasPrefix(cb.Direction, "outbound") {
		return cb.To
	}
	return cb.From
}

// Processor runs one recorded turn.
type Processor interface {
	Process(ctx context.Context, turn core.Turn) core.Outcome
}

type inflight struct {
	done chan struct{}
	out  *core.Outcome
}

// Controller answers the voice webhooks.
type Controller struct {
	Pipeline Processor
	Dedup    dedup.RecordingSet
	Caller   telephony.Caller
	Voice    telephony.Voice
	// BaseURL is the public address Twilio reaches this service at.
	BaseURL       string
	MaxNoInput    int
	CallBackDelay time.Duration
	Log           *zap.SugaredLogger

	mu      sync.Mutex
	running map[string]*inflight
	wg      sync.WaitGroup
}

// Config collects the controller's collaborators.
type Config struct {
	Pipeline      Processor
	Dedup         dedup.RecordingSet
	Caller        telephony.Caller
	BaseURL       string
	MaxNoInput    int
	CallBackDelay time.Duration
	Log           *zap.SugaredLogger
}

// New constructs a Controller.
func New(cfg Config) *Controller {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Controller{
		Pipeline:      cfg.Pipeline,
		Dedup:         cfg.Dedup,
		Caller:        cfg.Caller,
		Voice:         telephony.DefaultVoice,
		BaseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		MaxNoInput:    cfg.MaxNoInput,
		CallBackDelay: cfg.CallBackDelay,
		Log:           log,
		running:       map[string]*inflight{},
	}
}

// GreetingURL is the webhook for the given no-input attempt.
func (c *Controller) GreetingURL(attempt int, followUp bool) string {
	u := fmt.Sprintf("%s%s?attempt=%d", c.BaseURL, GreetingPath, attempt)
	if followUp {
		u += "&followup=1"
	}
	return u
}

// AudioURL is where Twilio fetches a synthesized clip.
func (c *Controller) AudioURL(id string) string {
	return c.BaseURL + AudioPath + id
}

// Greeting invites the caller to speak. Attempts beyond MaxNoInput end the
// call politely instead of looping forever.
func (c *Controller) Greeting(attempt int, followUp bool) (string, error) {
	if attempt > c.MaxNoInput {
		return telephony.SayAndHangup(core.GoodbyeMessage, c.Voice)
	}
	prompt := core.GreetingPrompt
	switch {
	case attempt > 0:
		prompt = core.NoInputPrompt
	case followUp:
		prompt = core.FollowUpPrompt
	}
	return telephony.Greeting(prompt, c.Voice, telephony.RecordOptions{
		Action:         fmt.Sprintf("%s%s?attempt=%d", c.BaseURL, RecordingPath, attempt),
		StatusCallback: c.BaseURL + StatusPath,
		NoInput:        c.GreetingURL(attempt+1, followUp),
	})
}

// RecordingComplete handles the action callback while the caller is on the
// line and returns the TwiML reply.
func (c *Controller) RecordingComplete(ctx context.Context, cb Callback) (string, error) {
	log := c.Log.With("callSid", cb.CallSid, "recordingSid", cb.RecordingSid)
	if cb.RecordingSid == "" && cb.RecordingURL == "" {
		log.Infow("recording callback without audio", "attempt", cb.Attempt)
		return c.Greeting(cb.Attempt+1, false)
	}

	out, ran := c.process(ctx, cb, false)
	if out == nil {
		log.Infow("recording already handled")
		return telephony.Continue(c.GreetingURL(0, true))
	}
	if !ran {
		log.Infow("joined in-flight processing")
	}
	if out.Path == core.PathApology {
		return telephony.SayAndHangup(out.Reply, c.Voice)
	}

	clip := ""
	if out.ClipID != "" {
		clip = c.AudioURL(out.ClipID)
	}
	voice := c.Voice
	if speech.IsPivot(out.VoiceLanguage) {
		voice.Language = speech.Pivot
	}
	return telephony.Reply(clip, out.Reply, voice, c.GreetingURL(0, true))
}

// Status handles the asynchronous recording-status callback. Nobody is
// listening, so it only makes sure the recording was processed once. It
// reports whether the pipeline ran for this callback.
func (c *Controller) Status(ctx context.Context, cb Callback) bool {
	if cb.RecordingStatus != "" && cb.RecordingStatus != "completed" {
		return false
	}
	if cb.RecordingSid == "" {
		return false
	}
	_, ran := c.process(context.WithoutCancel(ctx), cb, true)
	return ran
}

// process runs the pipeline at most once per recording. A duplicate that
// arrives while the first is still running waits for and shares its
// outcome; a later duplicate gets nil.
func (c *Controller) process(ctx context.Context, cb Callback, statusOnly bool) (*core.Outcome, bool) {
	log := c.Log.With("callSid", cb.CallSid, "recordingSid", cb.RecordingSid)

	c.mu.Lock()
	if c.running == nil {
		c.running = map[string]*inflight{}
	}
	if f, ok := c.running[cb.RecordingSid]; ok && cb.RecordingSid != "" {
		c.mu.Unlock()
		if statusOnly {
			return nil, false
		}
		select {
		case <-f.done:
			return f.out, false
		case <-ctx.Done():
			return nil, false
		}
	}
	f := &inflight{done: make(chan struct{})}
	if cb.RecordingSid != "" {
		c.running[cb.RecordingSid] = f
	}
	c.mu.Unlock()
	defer func() {
		close(f.done)
		c.mu.Lock()
		delete(c.running, cb.RecordingSid)
		c.mu.Unlock()
	}()

	seen, err := c.Dedup.Seen(ctx, cb.RecordingSid)
	if err != nil {
		// Status callbacks have no caller waiting, so they fail closed.
		if statusOnly {
			log.Errorw("dedup check failed, skipping", "error", err)
			return nil, false
		}
		log.Errorw("dedup check failed, processing anyway", "error", err)
	}
	if seen {
		return nil, false
	}

	out := c.Pipeline.Process(ctx, core.Turn{
		CallSid:      cb.CallSid,
		RecordingSid: cb.RecordingSid,
		RecordingURL: cb.RecordingURL,
		From:         cb.Caller(),
		LanguageHint: cb.LanguageHint,
	})
	f.out = &out
	log.Infow("recording processed", "path", out.Path, "statusCallback", statusOnly)
	return &out, true
}

// InboundCall answers a missed call and rings the caller back once the
// line is free.
func (c *Controller) InboundCall(cb Callback) (string, error) {
	c.callBackLater(cb.From)
	return telephony.SayAndHangup(core.MissedCallMessage, c.Voice)
}

// InboundSMS answers an SMS and rings the sender back.
func (c *Controller) InboundSMS(from string) (string, error) {
	c.callBackLater(from)
	return telephony.Message(core.SMSReply)
}

// Trigger places an outbound call immediately.
func (c *Controller) Trigger(ctx context.Context, phone string) (string, error) {
	if c.Caller == nil {
		return "", ErrCallsDisabled
	}
	sid, err := c.Caller.CallBack(ctx, phone)
	if err != nil {
		return "", err
	}
	c.Log.Infow("call triggered", "phone", phone, "callSid", sid)
	return sid, nil
}

func (c *Controller) callBackLater(phone string) {
	if phone == "" || c.Caller == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if c.CallBackDelay > 0 {
			time.Sleep(c.CallBackDelay)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		sid, err := c.Caller.CallBack(ctx, phone)
		if err != nil {
			c.Log.Errorw("call back failed", "phone", phone, "error", err)
			return
		}
		c.Log.Infow("call back placed", "phone", phone, "callSid", sid)
	}()
}

// Wait blocks until pending call-backs have been placed.
func (c *Controller) Wait() {
	c.wg.Wait()
}
