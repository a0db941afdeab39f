package http

import (
	"bufio"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"janani-health/internal/callflow"
	"janani-health/internal/core"
	"janani-health/internal/db"
	"janani-health/internal/dedup"
	"janani-health/internal/telephony"
	"janani-health/pkg"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingProcessor struct{ calls int32 }

func (p *countingProcessor) Process(context.Context, core.Turn) core.Outcome {
	atomic.AddInt32(&p.calls, 1)
	return core.Outcome{Path: core.PathAnswer, Reply: "aaram kijiye", ClipID: "clip-1"}
}

type fakeCaller struct{ to string }

func (f *fakeCaller) CallBack(_ context.Context, to string) (string, error) {
	f.to = to
	return "CA-out", nil
}

type fakeRunner struct {
	err error
}

func (f *fakeRunner) Run(_ context.Context, p pkg.PeriodType) (core.RunReport, error) {
	return core.RunReport{Period: p, Generated: 2}, f.err
}

type fixture struct {
	server    *Server
	router    *gin.Engine
	store     db.Store
	processor *countingProcessor
	clips     *telephony.MemoryClips
	runner    *fakeRunner
	caller    *fakeCaller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sqlite, err := db.NewSQLiteStore(filepath.Join(t.TempDir(), "http.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	notifier := db.NewLocalNotifier()
	f := &fixture{
		store:     db.WithNotifier(sqlite, notifier),
		processor: &countingProcessor{},
		clips:     telephony.NewMemoryClips(time.Minute),
		runner:    &fakeRunner{},
		caller:    &fakeCaller{},
	}
	calls := callflow.New(callflow.Config{
		Pipeline:   f.processor,
		Dedup:      dedup.NewMemorySet(100, time.Minute),
		Caller:     f.caller,
		BaseURL:    "https://janani.example",
		MaxNoInput: 2,
	})
	f.server = NewServer(Server{
		Calls:     calls,
		Store:     f.store,
		Notifier:  notifier,
		Clips:     f.clips,
		Summaries: f.runner,
		BaseURL:   "https://janani.example",
	})
	f.router = f.server.Router()
	return f
}

func (f *fixture) do(method, target string, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if method == http.MethodPost && !strings.HasPrefix(body, "{") {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/status", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"store":"connected"`) {
		t.Fatalf("unexpected status %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}
}

func TestGreetingWebhook(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/api/voice/greeting?attempt=3", "CallSid=CA1", nil)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/xml") {
		t.Fatalf("unexpected response %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "<Hangup") {
		t.Fatalf("third retry should hang up: %s", w.Body.String())
	}
}

func TestRecordingCallbacksProcessOnce(t *testing.T) {
	f := newFixture(t)
	form := url.Values{
		"CallSid":         {"CA1"},
		"From":            {"+919876543210"},
		"RecordingSid":    {"RE1"},
		"RecordingUrl":    {"https://api.twilio.test/RE1"},
		"RecordingStatus": {"completed"},
	}.Encode()

	w := f.do(http.MethodPost, "/api/voice/recording", form, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/api/voice/audio/clip-1") {
		t.Fatalf("unexpected reply %d %s", w.Code, w.Body.String())
	}
	w = f.do(http.MethodPost, "/api/voice/recording-status", form, nil)
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "<Say") || !strings.Contains(w.Body.String(), "<Response") {
		t.Fatalf("status callback should get a silent acknowledgement, got %d %s", w.Code, w.Body.String())
	}
	if f.processor.calls != 1 {
		t.Fatalf("expected one pipeline run, got %d", f.processor.calls)
	}
}

func TestAudio(t *testing.T) {
	f := newFixture(t)
	id, _ := f.clips.Put(context.Background(), []byte("RIFFDATA"))
	w := f.do(http.MethodGet, "/api/voice/audio/"+id, "", nil)
	if w.Code != http.StatusOK || w.Body.String() != "RIFFDATA" || w.Header().Get("Content-Type") != "audio/wav" {
		t.Fatalf("unexpected audio response %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if w := f.do(http.MethodGet, "/api/voice/audio/missing", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestInboundSMS(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/api/inbound/sms", "From=%2B919876543210", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<Message") {
		t.Fatalf("unexpected sms reply %d %s", w.Code, w.Body.String())
	}
	f.server.Calls.Wait()
	if f.caller.to != "+919876543210" {
		t.Fatalf("expected call-back to sender, got %q", f.caller.to)
	}
}

func TestTrigger(t *testing.T) {
	f := newFixture(t)
	if w := f.do(http.MethodPost, "/api/voice/trigger", `{}`, http.Header{"Content-Type": {"application/json"}}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w := f.do(http.MethodPost, "/api/voice/trigger", `{"phone":"+919876543210"}`, http.Header{"Content-Type": {"application/json"}})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "CA-out") {
		t.Fatalf("unexpected trigger response %d %s", w.Code, w.Body.String())
	}
}

func TestTriggerWithoutCaller(t *testing.T) {
	f := newFixture(t)
	f.server.Calls.Caller = nil
	w := f.do(http.MethodPost, "/api/voice/trigger", `{"phone":"+919876543210"}`, http.Header{"Content-Type": {"application/json"}})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d %s", w.Code, w.Body.String())
	}
}

func TestHistoryHugePage(t *testing.T) {
	f := newFixture(t)
	if err := f.store.AppendInteraction(context.Background(), "+919876543210", pkg.Interaction{SeverityScore: 2}); err != nil {
		t.Fatalf("append: %v", err)
	}
	w := f.do(http.MethodGet, "/api/dashboard/+919876543210/history?page=9223372036854775807&limit=2", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d %s", w.Code, w.Body.String())
	}
	var page struct {
		History []json.RawMessage `json:"history"`
	}
	decode(t, w, &page)
	if len(page.History) != 0 {
		t.Fatalf("expected an empty page, got %d entries", len(page.History))
	}
}

func TestDashboardEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var empty struct {
		Found bool `json:"found"`
	}
	decode(t, f.do(http.MethodGet, "/api/dashboard/+919876543210", "", nil), &empty)
	if empty.Found {
		t.Fatal("unknown user should not be found")
	}
	w := f.do(http.MethodGet, "/api/dashboard/+919876543210/summary/doctor", "", nil)
	if !strings.Contains(w.Body.String(), "No patient interactions recorded yet.") {
		t.Fatalf("unexpected empty doctor summary %s", w.Body.String())
	}

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, sev := range []int{2, 7, 4} {
		in := pkg.Interaction{
			Timestamp:     base.AddDate(0, 0, 7*i),
			SeverityScore: sev,
			Symptoms:      []pkg.SymptomEntry{{Name: "headache", Status: pkg.SymptomActive}},
		}
		if err := f.store.AppendInteraction(ctx, "+919876543210", in); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	var dash struct {
		Found bool `json:"found"`
		Data  struct {
			Stats struct {
				TotalInteractions int     `json:"totalInteractions"`
				AvgSeverity       float64 `json:"avgSeverity"`
			} `json:"stats"`
		} `json:"data"`
	}
	decode(t, f.do(http.MethodGet, "/api/dashboard/+919876543210", "", nil), &dash)
	if !dash.Found || dash.Data.Stats.TotalInteractions != 3 || dash.Data.Stats.AvgSeverity != 4.3 {
		t.Fatalf("unexpected dashboard %+v", dash)
	}

	var doctor struct {
		Summary struct {
			HighSeverityEvents int `json:"highSeverityEvents"`
		} `json:"summary"`
	}
	decode(t, f.do(http.MethodGet, "/api/dashboard/+919876543210/summary/doctor", "", nil), &doctor)
	if doctor.Summary.HighSeverityEvents != 1 {
		t.Fatalf("unexpected doctor summary %+v", doctor)
	}

	w = f.do(http.MethodGet, "/api/dashboard/+919876543210/summary/family", "", nil)
	if !strings.Contains(w.Body.String(), "overallHealth") {
		t.Fatalf("unexpected family summary %s", w.Body.String())
	}

	var page struct {
		History    []json.RawMessage `json:"history"`
		Pagination struct {
			Total      int `json:"total"`
			TotalPages int `json:"totalPages"`
		} `json:"pagination"`
	}
	decode(t, f.do(http.MethodGet, "/api/dashboard/+919876543210/history?page=1&limit=2", "", nil), &page)
	if len(page.History) != 2 || page.Pagination.Total != 3 || page.Pagination.TotalPages != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestRunSummaries(t *testing.T) {
	f := newFixture(t)
	if w := f.do(http.MethodPost, "/api/summaries/yearly/run", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w := f.do(http.MethodPost, "/api/summaries/daily/run", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"generated":2`) {
		t.Fatalf("unexpected run response %d %s", w.Code, w.Body.String())
	}
	f.runner.err = core.ErrRunInProgress
	if w := f.do(http.MethodPost, "/api/summaries/daily/run", "", nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func sign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	data := fullURL
	for _, k := range keys {
		data += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestTwilioSignature(t *testing.T) {
	f := newFixture(t)
	f.server.Validator = telephony.NewValidator("secret")
	f.router = f.server.Router()

	form := url.Values{"CallSid": {"CA1"}}
	if w := f.do(http.MethodPost, "/api/voice/greeting", form.Encode(), nil); w.Code != http.StatusForbidden {
		t.Fatalf("unsigned webhook should be rejected, got %d", w.Code)
	}
	sig := sign("secret", "https://janani.example/api/voice/greeting", form)
	w := f.do(http.MethodPost, "/api/voice/greeting", form.Encode(), http.Header{"X-Twilio-Signature": {sig}})
	if w.Code != http.StatusOK {
		t.Fatalf("signed webhook should pass, got %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/status", "", nil); w.Code != http.StatusOK {
		t.Fatalf("status must not require a signature, got %d", w.Code)
	}
}

func TestStreamPushesUpdates(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/dashboard/+919876543210/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	r := bufio.NewReader(resp.Body)

	readData := func() string {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			if strings.HasPrefix(line, "data: ") {
				return line
			}
		}
	}
	if first := readData(); !strings.Contains(first, `"totalInteractions":0`) {
		t.Fatalf("unexpected first event %s", first)
	}
	if err := f.store.AppendInteraction(context.Background(), "+919876543210", pkg.Interaction{SeverityScore: 3}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if next := readData(); !strings.Contains(next, `"totalInteractions":1`) {
		t.Fatalf("unexpected update %s", next)
	}
}
