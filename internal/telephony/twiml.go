// Package telephony wraps the Twilio pieces of a call: the TwiML returned to
// webhooks, outbound call-backs, recording downloads, synthesized clip
// hosting and webhook signature checks.
package telephony

import (
	"strconv"

	"github.com/twilio/twilio-go/twiml"
)

// Voice is a provider built-in voice used when no synthesized clip exists.
type Voice struct {
	Name     string
	Language string
}

// DefaultVoice is the provider voice used for prompts and degraded replies.
var DefaultVoice = Voice{Name: "Polly.Aditi", Language: "hi-IN"}

// RecordOptions configures the recording step of a greeting.
type RecordOptions struct {
	Action         string
	StatusCallback string
	// NoInput is requested when the caller stays silent.
	NoInput     string
	Timeout     int
	MaxLength   int
	FinishOnKey string
}

func say(text string, v Voice) twiml.Element {
	return &twiml.VoiceSay{Message: text, Voice: v.Name, Language: v.Language}
}

func redirect(url string) twiml.Element {
	return &twiml.VoiceRedirect{Url: url, Method: "POST"}
}

// Greeting speaks prompt, records the caller and falls through to
// opts.NoInput if nothing was captured.
func Greeting(prompt string, v Voice, opts RecordOptions) (string, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 5
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = 60
	}
	if opts.FinishOnKey == "" {
		opts.FinishOnKey = "#"
	}
	rec := &twiml.VoiceRecord{
		Action:      opts.Action,
		Method:      "POST",
		Timeout:     strconv.Itoa(opts.Timeout),
		MaxLength:   strconv.Itoa(opts.MaxLength),
		FinishOnKey: opts.FinishOnKey,
		PlayBeep:    "true",
		Trim:        "trim-silence",
	}
	if opts.StatusCallback != "" {
		rec.RecordingStatusCallback = opts.StatusCallback
		rec.RecordingStatusCallbackMethod = "POST"
		rec.RecordingStatusCallbackEvent = "completed"
	}
	verbs := []twiml.Element{say(prompt, v), rec}
	if opts.NoInput != "" {
		verbs = append(verbs, redirect(opts.NoInput))
	}
	return twiml.Voice(verbs)
}

// Reply plays the synthesized clip, or speaks text in the fallback voice
// when clipURL is empty, then continues at next.
func Reply(clipURL, text string, v Voice, next string) (string, error) {
	var verbs []twiml.Element
	if clipURL != "" {
		verbs = append(verbs, &twiml.VoicePlay{Url: clipURL})
	} else {
		verbs = append(verbs, say(text, v))
	}
	if next != "" {
		verbs = append(verbs, redirect(next))
	} else {
		verbs = append(verbs, &twiml.VoiceHangup{})
	}
	return twiml.Voice(verbs)
}

// Continue moves the call on to next without speaking.
func Continue(next string) (string, error) {
	return twiml.Voice([]twiml.Element{redirect(next)})
}

// SayAndHangup speaks text and ends the call.
func SayAndHangup(text string, v Voice) (string, error) {
	return twiml.Voice([]twiml.Element{say(text, v), &twiml.VoiceHangup{}})
}

// Empty acknowledges a webhook without any instruction.
func Empty() (string, error) {
	return twiml.Voice([]twiml.Element{})
}

// Message answers an inbound SMS.
func Message(body string) (string, error) {
	return twiml.Messages([]twiml.Element{&twiml.MessagingMessage{Body: body}})
}
