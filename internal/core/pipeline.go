package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"janani-health/internal/clinical"
	"janani-health/internal/db"
	"janani-health/internal/fallback"
	"janani-health/internal/llm"
	"janani-health/internal/speech"
	"janani-health/pkg"
)

var (
	// ErrNoRecording means the caller's audio could not be downloaded.
	ErrNoRecording = errors.New("recording could not be fetched")
	// ErrEmptyTranscript means transcription produced no usable text.
	ErrEmptyTranscript = errors.New("transcript is empty")
)

// Path is the kind of reply a turn ended with.
type Path string

const (
	PathAnswer     Path = "answer"
	PathSafeHarbor Path = "safe_harbor"
	PathApology    Path = "apology"
)

// Stage names used in logs and Outcome.Degraded.
const (
	StageFetch        = "fetch"
	StageTranscribe   = "transcribe"
	StageTranslateIn  = "translate_in"
	StageAdvise       = "advise"
	StageExtract      = "extract"
	StageTranslateOut = "translate_out"
	StageSynthesize   = "synthesize"
	StagePersist      = "persist"
)

// AnonymousPhone keys turns whose caller number is unknown.
const AnonymousPhone = "anonymous"

// Turn is one recorded utterance to process.
type Turn struct {
	CallSid      string
	RecordingSid string
	RecordingURL string
	// From is the caller's phone number, whichever leg dialled.
	From         string
	LanguageHint string
}

// Outcome tells the call controller what to say.
type Outcome struct {
	Path Path
	// Language is the caller's detected language.
	Language string
	// VoiceLanguage is the language the reply clip was synthesized in.
	VoiceLanguage string
	Reply         string
	// ClipID is empty when synthesis failed and the provider voice must
	// speak Reply instead.
	ClipID      string
	Degraded    []string
	Interaction pkg.Interaction
	// Err is the fatal cause on the apology path.
	Err error
}

// RecordingFetcher downloads a recording.
type RecordingFetcher interface {
	Fetch(ctx context.Context, recordingURL string) ([]byte, error)
}

// ClipWriter stores a synthesized reply and returns its id.
type ClipWriter interface {
	Put(ctx context.Context, audio []byte) (string, error)
}

// Pipeline runs one call turn from recording to stored interaction. Stages
// run in order, each bounded by StageTimeout; only fetch and transcription
// failures end the turn early.
type Pipeline struct {
	Fetcher     RecordingFetcher
	Transcriber speech.Transcriber
	Translator  speech.Translator
	Advice      *AdviceService
	Extractor   clinical.Extractor
	Synthesizer speech.Synthesizer
	Clips       ClipWriter
	Store       db.Store
	// LLM backs the second reply translation strategy; nil skips it.
	LLM llm.Client
	Log *zap.SugaredLogger

	StageTimeout time.Duration
	// Budget bounds the whole turn so the reply is ready before the
	// telephony webhook times out. Zero means no overall bound.
	Budget time.Duration
	Now    func() time.Time
}

func (p *Pipeline) timeout() time.Duration {
	if p.StageTimeout <= 0 {
		return 8 * time.Second
	}
	return p.StageTimeout
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *Pipeline) logger() *zap.SugaredLogger {
	if p.Log == nil {
		return zap.NewNop().Sugar()
	}
	return p.Log
}

// within runs fn under its own deadline derived from ctx.
func within[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

type extraction struct {
	rec clinical.Record
	err error
}

// Process never returns an error: every failure is folded into the Outcome.
func (p *Pipeline) Process(ctx context.Context, turn Turn) Outcome {
	if p.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Budget)
		defer cancel()
	}
	log := p.logger().With("callSid", turn.CallSid, "recordingSid", turn.RecordingSid, "phone", turn.From)
	d := p.timeout()
	out := Outcome{Language: speech.NormalizeLanguage(turn.LanguageHint)}
	started := p.now()

	// 1. fetch
	audio, err := within(ctx, d, func(ctx context.Context) ([]byte, error) {
		return p.Fetcher.Fetch(ctx, turn.RecordingURL)
	})
	if err != nil {
		log.Errorw("fetch recording failed", "stage", StageFetch, "error", err)
		return p.apologize(ctx, turn, out, fmt.Errorf("%w: %v", ErrNoRecording, err))
	}

	// 2. transcribe
	tr, err := within(ctx, d, func(ctx context.Context) (speech.Transcript, error) {
		return p.Transcriber.Transcribe(ctx, audio, turn.RecordingSid+".wav", turn.LanguageHint)
	})
	if err != nil {
		log.Errorw("transcription failed", "stage", StageTranscribe, "error", err)
		return p.apologize(ctx, turn, out, fmt.Errorf("transcribe: %w", err))
	}
	if strings.TrimSpace(tr.Text) == "" {
		log.Warnw("empty transcript", "stage", StageTranscribe)
		return p.apologize(ctx, turn, out, ErrEmptyTranscript)
	}
	if lang := speech.NormalizeLanguage(tr.Language); lang != "" {
		out.Language = lang
	}
	if out.Language == "" {
		out.Language = speech.Pivot
	}
	log = log.With("language", out.Language)

	// 3. translate to pivot
	english := tr.Text
	if !speech.IsPivot(out.Language) {
		translated, err := within(ctx, d, func(ctx context.Context) (string, error) {
			return p.Translator.Translate(ctx, tr.Text, out.Language, speech.Pivot)
		})
		if err != nil {
			log.Warnw("query translation failed, using original text", "stage", StageTranslateIn, "error", err)
			out.Degraded = append(out.Degraded, StageTranslateIn)
		} else {
			english = translated
		}
	}

	// 4. advise
	history := p.history(ctx, turn.From, log)
	answer, err := within(ctx, d, func(ctx context.Context) (string, error) {
		return p.Advice.Advise(ctx, english, history)
	})
	out.Path = PathAnswer
	advisoryContext := answer
	if err != nil {
		log.Warnw("advisory failed, using safe-harbor message", "stage", StageAdvise, "error", err)
		out.Degraded = append(out.Degraded, StageAdvise)
		out.Path = PathSafeHarbor
		answer = SafeHarborMessage
		advisoryContext = ""
	}

	// 5. extract, alongside the reply stages
	extracted := make(chan extraction, 1)
	go func() {
		rec, err := within(ctx, d, func(ctx context.Context) (clinical.Record, error) {
			return p.Extractor.Extract(ctx, english, advisoryContext)
		})
		extracted <- extraction{rec: rec, err: err}
	}()

	// 6. localize the reply
	reply, via := answer, "pivot"
	if !speech.IsPivot(out.Language) {
		r, name, err := p.replyChain(out.Language, d).Run(ctx, answer)
		if err == nil {
			reply, via = r, name
		}
		if via != "provider" {
			log.Warnw("reply translation degraded", "stage", StageTranslateOut, "strategy", via, "error", err)
			out.Degraded = append(out.Degraded, StageTranslateOut)
		}
	}
	out.Reply = reply

	// 7. synthesize
	out.VoiceLanguage = speech.VoiceLanguage(out.Language)
	if via == "pivot" {
		out.VoiceLanguage = speech.Pivot
	}
	clipID, err := within(ctx, d, func(ctx context.Context) (string, error) {
		wav, err := p.Synthesizer.Synthesize(ctx, reply, out.VoiceLanguage)
		if err != nil {
			return "", err
		}
		return p.Clips.Put(ctx, wav)
	})
	if err != nil {
		log.Warnw("synthesis failed, falling back to provider voice", "stage", StageSynthesize, "error", err)
		out.Degraded = append(out.Degraded, StageSynthesize)
	} else {
		out.ClipID = clipID
	}

	ex := <-extracted
	rec := ex.rec
	if ex.err != nil {
		log.Warnw("clinical extraction failed, using defaults", "stage", StageExtract, "error", ex.err)
		out.Degraded = append(out.Degraded, StageExtract)
		rec = clinical.Default(english)
	}

	// 8. persist
	in := pkg.Interaction{
		ID:                 pkg.NewInteractionID(),
		Timestamp:          started,
		UserMessageNative:  tr.Text,
		UserMessageEnglish: english,
		ReplyNative:        reply,
		ReplyEnglish:       answer,
		Source:             pkg.SourceVoiceCall,
		Language:           out.Language,
	}
	rec.Apply(&in)
	out.Interaction = in
	if err := p.persist(ctx, turn.From, in); err != nil {
		log.Errorw("persist interaction failed", "stage", StagePersist, "error", err)
		out.Degraded = append(out.Degraded, StagePersist)
	}

	log.Infow("turn processed", "path", out.Path, "severity", in.SeverityScore, "degraded", out.Degraded,
		"latency", p.now().Sub(started))
	return out
}

// replyChain orders the reply translation strategies: the speech provider,
// then the LLM, then the pivot text unchanged.
func (p *Pipeline) replyChain(lang string, d time.Duration) fallback.Chain[string, string] {
	strategies := []fallback.Strategy[string, string]{{
		Name: "provider",
		Run: func(ctx context.Context, text string) (string, error) {
			return within(ctx, d, func(ctx context.Context) (string, error) {
				return p.Translator.Translate(ctx, text, speech.Pivot, lang)
			})
		},
	}}
	if p.LLM != nil {
		strategies = append(strategies, fallback.Strategy[string, string]{
			Name: "llm",
			Run: func(ctx context.Context, text string) (string, error) {
				return within(ctx, d, func(ctx context.Context) (string, error) {
					msg := fmt.Sprintf(translationInstruction, speech.LanguageName(lang), text)
					out, err := p.LLM.Chat(ctx, llm.PurposeTranslate, []llm.Message{{Role: "user", Content: msg}})
					if err == nil && strings.TrimSpace(out) == "" {
						err = errors.New("empty translation")
					}
					return out, err
				})
			},
		})
	}
	strategies = append(strategies, fallback.Strategy[string, string]{
		Name: "pivot",
		Run:  func(_ context.Context, text string) (string, error) { return text, nil },
	})
	return fallback.New(strategies...)
}

// history loads the caller's earlier turns for advisory context. Failures
// only cost context.
func (p *Pipeline) history(ctx context.Context, phone string, log *zap.SugaredLogger) []pkg.Interaction {
	if phone == "" {
		return nil
	}
	rec, err := within(ctx, p.timeout(), func(ctx context.Context) (*pkg.UserHealthRecord, error) {
		return p.Store.Get(ctx, phone)
	})
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.Warnw("load history failed", "error", err)
		}
		return nil
	}
	return rec.History
}

// persist writes the interaction even if the caller already hung up.
func (p *Pipeline) persist(ctx context.Context, phone string, in pkg.Interaction) error {
	if phone == "" {
		phone = AnonymousPhone
	}
	_, err := within(context.WithoutCancel(ctx), p.timeout(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.Store.AppendInteraction(ctx, phone, in)
	})
	return err
}

// apologize ends the turn and records a zero-severity error interaction.
func (p *Pipeline) apologize(ctx context.Context, turn Turn, out Outcome, cause error) Outcome {
	in := pkg.Interaction{
		ID:                pkg.NewInteractionID(),
		Timestamp:         p.now(),
		UserMessageNative: "[error] " + cause.Error(),
		Symptoms:          []pkg.SymptomEntry{},
		Medications:       []pkg.MedicationEntry{},
		FetalMovement:     pkg.FetalInvalid,
		SeverityScore:     0,
		Source:            pkg.SourceVoiceCall,
		Language:          out.Language,
	}
	if err := p.persist(ctx, turn.From, in); err != nil {
		p.logger().Errorw("persist error interaction failed", "callSid", turn.CallSid, "error", err)
	}
	out.Path = PathApology
	out.Reply = ApologyMessage
	out.Interaction = in
	out.Err = cause
	return out
}
