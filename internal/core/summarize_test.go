package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"janani-health/pkg"
)

var ist = time.FixedZone("IST", 5*3600+1800)

const narrativeJSON = `{"summary_english":"Stable week.","summary_native":"Sab theek hai.","symptoms_timeline":"headache relieved","medications_timeline":"iron taken","doctor_notes":"none"}`

func TestWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 21, 0, 0, 0, ist)
	cases := []struct {
		period     pkg.PeriodType
		start, end time.Time
	}{
		{pkg.PeriodDaily, time.Date(2025, 3, 10, 0, 0, 0, 0, ist), time.Date(2025, 3, 10, 23, 59, 59, 999e6, ist)},
		{pkg.PeriodWeekly, time.Date(2025, 3, 3, 0, 0, 0, 0, ist), now},
		{pkg.PeriodMonthly, time.Date(2025, 2, 1, 0, 0, 0, 0, ist), time.Date(2025, 2, 28, 23, 59, 59, 999e6, ist)},
	}
	for _, c := range cases {
		start, end, err := Window(c.period, now, ist)
		if err != nil {
			t.Fatalf("%s: %v", c.period, err)
		}
		if !start.Equal(c.start) || !end.Equal(c.end) {
			t.Errorf("%s: got [%s, %s], want [%s, %s]", c.period, start, end, c.start, c.end)
		}
	}

	start, end, _ := Window(pkg.PeriodMonthly, time.Date(2025, 1, 1, 0, 0, 0, 0, ist), ist)
	if !start.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, ist)) || end.Day() != 31 {
		t.Errorf("january run should cover december, got [%s, %s]", start, end)
	}
	if _, _, err := Window("yearly", now, ist); !errors.Is(err, ErrUnknownPeriod) {
		t.Errorf("expected ErrUnknownPeriod, got %v", err)
	}
}

func TestWindowUsesLocalMidnight(t *testing.T) {
	// 20:00 UTC is already the next day in India.
	now := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	start, _, _ := Window(pkg.PeriodDaily, now, ist)
	if !start.Equal(time.Date(2025, 3, 11, 0, 0, 0, 0, ist)) {
		t.Fatalf("unexpected daily start %s", start)
	}
}

func TestParsePeriod(t *testing.T) {
	if p, err := ParsePeriod(" Weekly "); err != nil || p != pkg.PeriodWeekly {
		t.Fatalf("unexpected %q, %v", p, err)
	}
	if _, err := ParsePeriod("hourly"); !errors.Is(err, ErrUnknownPeriod) {
		t.Fatalf("expected ErrUnknownPeriod, got %v", err)
	}
}

func TestGenerateEmptyWindowIsNoop(t *testing.T) {
	f := &fakeLLM{payload: narrativeJSON}
	s := NewSummarizer(f, ist, time.Second)
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, ist)
	rec := &pkg.UserHealthRecord{PhoneNumber: caller, History: []pkg.Interaction{
		{Timestamp: start.Add(-time.Hour), SeverityScore: 5},
	}}

	sum, err := s.Generate(context.Background(), rec, pkg.PeriodDaily, start, start.Add(24*time.Hour-time.Millisecond))
	if err != nil || sum != nil {
		t.Fatalf("expected no summary, got %+v, %v", sum, err)
	}
	if f.jsonCalls != 0 {
		t.Fatal("model must not be called for an empty window")
	}
}

func TestGenerateBuildsSummary(t *testing.T) {
	f := &fakeLLM{payload: narrativeJSON}
	s := NewSummarizer(f, ist, time.Second)
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, ist)
	end := start.Add(24*time.Hour - time.Millisecond)
	rec := &pkg.UserHealthRecord{PhoneNumber: caller, History: []pkg.Interaction{
		{Timestamp: start.Add(9 * time.Hour), SeverityScore: 3, UserMessageEnglish: "headache",
			Symptoms: []pkg.SymptomEntry{{Name: "headache", Status: pkg.SymptomActive, ReportedTime: "morning"}}},
		{Timestamp: start.Add(12 * time.Hour), SeverityScore: 6,
			Medications: []pkg.MedicationEntry{{Name: "iron", Taken: true, EffectNoted: "less tired"}}},
		{Timestamp: start.Add(13 * time.Hour), SeverityScore: 0, FetalMovement: pkg.FetalInvalid},
		{Timestamp: end.Add(time.Hour), SeverityScore: 9},
	}}

	sum, err := s.Generate(context.Background(), rec, pkg.PeriodDaily, start, end)
	if err != nil || sum == nil {
		t.Fatalf("generate: %+v, %v", sum, err)
	}
	if sum.TotalInteractions != 3 || sum.AvgSeverity != 4.5 {
		t.Fatalf("unexpected counts %+v", sum)
	}
	if sum.SummaryEnglish != "Stable week." || sum.DoctorNotes != "none" || !sum.PeriodStart.Equal(start) {
		t.Fatalf("unexpected summary %+v", sum)
	}
	prompt := f.systems[0]
	for _, want := range []string{"daily", caller, "10/3/2025", "TOTAL INTERACTIONS: 3", "AVERAGE SEVERITY: 4.5/10",
		"--- Call 1 at 10/3/2025, 9:00:00 am ---", "headache (active, morning)", "iron (taken, effect: less tired)", "Call 3"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "Call 4") {
		t.Fatal("interaction outside the window leaked into the prompt")
	}
}

func TestGenerateReportsModelFailure(t *testing.T) {
	f := &fakeLLM{payload: narrativeJSON, failOn: caller}
	s := NewSummarizer(f, ist, time.Second)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, ist)
	rec := &pkg.UserHealthRecord{PhoneNumber: caller, History: []pkg.Interaction{{Timestamp: now, SeverityScore: 2}}}
	if _, err := s.Generate(context.Background(), rec, pkg.PeriodDaily, now.Add(-time.Hour), now.Add(time.Hour)); !errors.Is(err, errDown) {
		t.Fatalf("expected model error, got %v", err)
	}
}

func TestRunnerIsolatesFailuresAndSkipsExisting(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	now := time.Date(2025, 3, 10, 21, 0, 0, 0, ist)
	for _, phone := range []string{"+91good", "+91bad"} {
		if err := store.AppendInteraction(ctx, phone, pkg.Interaction{Timestamp: now.Add(-2 * time.Hour), SeverityScore: 3}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := store.AppendInteraction(ctx, "+91old", pkg.Interaction{Timestamp: now.AddDate(0, 0, -3), SeverityScore: 3}); err != nil {
		t.Fatalf("append: %v", err)
	}

	f := &fakeLLM{payload: narrativeJSON, failOn: "+91bad"}
	r := NewSummaryRunner(store, NewSummarizer(f, ist, time.Second), ist, nil)
	r.Now = func() time.Time { return now }

	report, err := r.Run(ctx, pkg.PeriodDaily)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Users != 2 || report.Generated != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	rec, _ := store.Get(ctx, "+91good")
	if len(rec.Summaries) != 1 || rec.Summaries[0].Type != pkg.PeriodDaily {
		t.Fatalf("unexpected summaries %+v", rec.Summaries)
	}

	report, err = r.Run(ctx, pkg.PeriodDaily)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Generated != 0 || report.Skipped != 1 || report.Failed != 1 {
		t.Fatalf("second run should skip the stored window, got %+v", report)
	}
	rec, _ = store.Get(ctx, "+91good")
	if len(rec.Summaries) != 1 {
		t.Fatalf("summary generated twice: %+v", rec.Summaries)
	}
}

func TestRunnerRejectsOverlap(t *testing.T) {
	r := NewSummaryRunner(newStore(t), NewSummarizer(&fakeLLM{payload: narrativeJSON}, ist, time.Second), ist, nil)
	if !r.acquire(pkg.PeriodWeekly) {
		t.Fatal("first acquire should succeed")
	}
	if _, err := r.Run(context.Background(), pkg.PeriodWeekly); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if _, err := r.Run(context.Background(), pkg.PeriodDaily); err != nil {
		t.Fatalf("other periods must not be blocked: %v", err)
	}
	r.release(pkg.PeriodWeekly)
	if _, err := r.Run(context.Background(), pkg.PeriodWeekly); err != nil {
		t.Fatalf("run after release: %v", err)
	}
}
