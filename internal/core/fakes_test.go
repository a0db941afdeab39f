package core

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"janani-health/internal/advisory"
	"janani-health/internal/clinical"
	"janani-health/internal/db"
	"janani-health/internal/llm"
	"janani-health/internal/speech"
	"janani-health/pkg"
)

var errDown = errors.New("service down")

type fakeFetcher struct {
	audio []byte
	err   error
}

func (f *fakeFetcher) Fetch(context.Context, string) ([]byte, error) {
	return f.audio, f.err
}

type fakeSpeech struct {
	transcript  speech.Transcript
	sttErr      error
	failIn      bool
	failOut     bool
	synthErr    error
	sttCalls    int
	inCalls     int
	synthLang   string
	synthesized string
}

func (f *fakeSpeech) Transcribe(context.Context, []byte, string, string) (speech.Transcript, error) {
	f.sttCalls++
	return f.transcript, f.sttErr
}

func (f *fakeSpeech) Translate(_ context.Context, text, source, target string) (string, error) {
	if target == speech.Pivot {
		f.inCalls++
		if f.failIn {
			return "", errDown
		}
	}
	if source == speech.Pivot && f.failOut {
		return "", errDown
	}
	return "[" + target + "] " + text, nil
}

func (f *fakeSpeech) Synthesize(_ context.Context, text, lang string) ([]byte, error) {
	f.synthLang = lang
	f.synthesized = text
	if f.synthErr != nil {
		return nil, f.synthErr
	}
	return []byte("RIFF" + text), nil
}

type fakeAdvisor struct {
	answer string
	err    error
	// block makes Ask wait until its context is done.
	block bool
	got   advisory.Request
}

func (f *fakeAdvisor) Ask(ctx context.Context, req advisory.Request) (advisory.Answer, error) {
	f.got = req
	if f.block {
		<-ctx.Done()
		return advisory.Answer{}, ctx.Err()
	}
	if f.err != nil {
		return advisory.Answer{}, f.err
	}
	return advisory.Answer{EnglishAnswer: f.answer}, nil
}

type fakeExtractor struct {
	rec        clinical.Record
	err        error
	gotContext string
}

func (f *fakeExtractor) Extract(_ context.Context, _, advisoryContext string) (clinical.Record, error) {
	f.gotContext = advisoryContext
	return f.rec, f.err
}

type fakeClips struct {
	mu    sync.Mutex
	clips [][]byte
}

func (f *fakeClips) Put(_ context.Context, audio []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clips = append(f.clips, audio)
	return "clip-1", nil
}

// fakeLLM answers Chat with chat and JSON with the payload, failing JSON
// calls whose system prompt contains failOn.
type fakeLLM struct {
	mu        sync.Mutex
	chat      string
	chatErr   error
	payload   string
	failOn    string
	jsonCalls int
	systems   []string
}

func (f *fakeLLM) Chat(context.Context, llm.Purpose, []llm.Message) (string, error) {
	return f.chat, f.chatErr
}

func (f *fakeLLM) JSON(_ context.Context, _ llm.Purpose, system, _ string, out interface{}) error {
	f.mu.Lock()
	f.jsonCalls++
	f.systems = append(f.systems, system)
	f.mu.Unlock()
	if f.failOn != "" && strings.Contains(system, f.failOn) {
		return errDown
	}
	return json.Unmarshal([]byte(f.payload), out)
}

// failingStore reads through but refuses every append.
type failingStore struct {
	*db.SQLiteStore
}

func (failingStore) AppendInteraction(context.Context, string, pkg.Interaction) error {
	return errDown
}

func newStore(t *testing.T) *db.SQLiteStore {
	t.Helper()
	s, err := db.NewSQLiteStore(filepath.Join(t.TempDir(), "core.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
