package aggregate

import (
	"math"
	"strings"
	"testing"
	"time"

	"janani-health/pkg"
)

var base = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

func turn(day, severity int, symptoms ...pkg.SymptomEntry) pkg.Interaction {
	return pkg.Interaction{
		ID:            pkg.NewInteractionID(),
		Timestamp:     base.AddDate(0, 0, day),
		SeverityScore: severity,
		Symptoms:      symptoms,
		FetalMovement: pkg.FetalYes,
	}
}

func sym(name string, status pkg.SymptomStatus) pkg.SymptomEntry {
	return pkg.SymptomEntry{Name: name, Status: status}
}

func TestAvgSeverityIgnoresUnscoredTurns(t *testing.T) {
	if got := AvgSeverity([]pkg.Interaction{turn(0, 0), turn(1, 0)}); got != 0 {
		t.Fatalf("all-zero history should average 0, got %v", got)
	}
	if got := AvgSeverity(nil); got != 0 {
		t.Fatalf("empty history should average 0, got %v", got)
	}
	if got := AvgSeverity([]pkg.Interaction{turn(0, 0), turn(1, 4), turn(2, 6)}); got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
}

func TestHighSeverityFlagOnly(t *testing.T) {
	var history []pkg.Interaction
	for i := 0; i < 4; i++ {
		in := turn(i, 7, sym("back pain", pkg.SymptomRelieved))
		history = append(history, in)
	}
	sum := Doctor(history, base)
	if len(sum.RedFlags) != 1 {
		t.Fatalf("expected exactly one flag, got %v", sum.RedFlags)
	}
	if sum.RedFlags[0] != "4 high-severity events recorded" {
		t.Fatalf("unexpected flag %q", sum.RedFlags[0])
	}
	if len(sum.ActiveSymptoms) != 0 {
		t.Fatalf("relieved symptoms should not be active: %v", sum.ActiveSymptoms)
	}
	if len(sum.RecentHighSeverity) != 4 {
		t.Fatalf("expected 4 recent high severity events, got %d", len(sum.RecentHighSeverity))
	}
}

func TestDoctorFlagsAreIndependent(t *testing.T) {
	history := []pkg.Interaction{
		turn(0, 3, sym("a", pkg.SymptomActive), sym("b", pkg.SymptomRecurring)),
		turn(1, 3, sym("c", pkg.SymptomActive), sym("d", pkg.SymptomActive)),
	}
	history[0].FetalMovement = pkg.FetalNo
	history[1].FetalMovement = pkg.FetalNo
	history[1].Medications = []pkg.MedicationEntry{{Name: "iron", Taken: false}}
	history[1].AISummary = "dizzy in the morning"

	sum := Doctor(history, base)
	want := []string{
		"Multiple active symptoms: a, b, c, d",
		"Patient frequently reports no fetal movement",
		"Medications not taken: iron",
	}
	if strings.Join(sum.RedFlags, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected flags %v", sum.RedFlags)
	}
	if sum.DoctorNotes != "[2025-03-04] dizzy in the morning" {
		t.Fatalf("unexpected notes %q", sum.DoctorNotes)
	}
}

func TestFetalConcernIgnoresInvalid(t *testing.T) {
	history := []pkg.Interaction{turn(0, 2), turn(1, 2), turn(2, 2)}
	history[0].FetalMovement = pkg.FetalNo
	history[1].FetalMovement = pkg.FetalInvalid
	history[2].FetalMovement = pkg.FetalInvalid
	if !Doctor(history, base).FetalMovementConcern {
		t.Fatal("one No out of one valid check should raise concern")
	}
	history[1].FetalMovement = pkg.FetalYes
	if Doctor(history, base).FetalMovementConcern {
		t.Fatal("exactly half should not raise concern")
	}
}

func TestHealthTierBoundaries(t *testing.T) {
	cases := []struct {
		avg  float64
		want string
	}{
		{0, TierGood},
		{3.0, TierGood},
		{3.01, TierAttention},
		{6.0, TierAttention},
		{6.01, TierUrgent},
		{10, TierUrgent},
	}
	for _, c := range cases {
		if got := HealthTier(c.avg); got != c.want {
			t.Errorf("HealthTier(%v) = %q, want %q", c.avg, got, c.want)
		}
	}
}

func TestFamilySummary(t *testing.T) {
	history := []pkg.Interaction{
		turn(0, 3, sym("headache", pkg.SymptomActive)),
		turn(1, 3, sym("headache", pkg.SymptomRelieved)),
		turn(2, 0),
	}
	history[1].ReliefNoted = true
	history[1].Medications = []pkg.MedicationEntry{{Name: "paracetamol", Taken: true}, {Name: "iron", Taken: false}}

	sum := Family(history, base)
	if sum.OverallHealth != TierGood || sum.AverageSeverity != 2 {
		t.Fatalf("unexpected tier %q avg %v", sum.OverallHealth, sum.AverageSeverity)
	}
	if !strings.HasPrefix(sum.Message, "She is doing well") {
		t.Fatalf("unexpected message %q", sum.Message)
	}
	if len(sum.RecentSymptoms) != 1 || sum.RecentSymptoms[0] != "headache (active)" {
		t.Fatalf("expected first-seen status, got %v", sum.RecentSymptoms)
	}
	if len(sum.MedicationsTaken) != 1 || sum.MedicationsTaken[0] != "paracetamol" {
		t.Fatalf("unexpected medications %v", sum.MedicationsTaken)
	}
	if sum.ReliefOccurrences != 1 || sum.TotalRecentChats != 3 {
		t.Fatalf("unexpected counts %+v", sum)
	}
}

func TestFamilyUsesTrailingWindow(t *testing.T) {
	var history []pkg.Interaction
	for i := 0; i < 5; i++ {
		history = append(history, turn(i, 10))
	}
	for i := 0; i < 15; i++ {
		history = append(history, turn(10+i, 1))
	}
	sum := Family(history, base)
	if sum.OverallHealth != TierGood || sum.TotalRecentChats != 15 {
		t.Fatalf("older turns leaked into the window: %+v", sum)
	}
}

func TestEndToEndRollup(t *testing.T) {
	history := []pkg.Interaction{
		turn(0, 2, sym("headache", pkg.SymptomActive)),
		turn(8, 7, sym("headache", pkg.SymptomRelieved)),
		turn(9, 4, sym("nausea", pkg.SymptomActive)),
	}
	rec := &pkg.UserHealthRecord{PhoneNumber: "+911234567890", History: history}
	dash := Dashboard(rec)

	if len(dash.Symptoms) != 2 {
		t.Fatalf("expected 2 symptoms, got %d", len(dash.Symptoms))
	}
	head := dash.Symptoms[0]
	if head.Name != "headache" || head.Occurrences != 2 || head.Status != pkg.SymptomRelieved {
		t.Fatalf("unexpected headache rollup %+v", head)
	}
	if !head.FirstReported.Equal(history[0].Timestamp) || !head.LastReported.Equal(history[1].Timestamp) {
		t.Fatalf("unexpected headache range %+v", head)
	}
	if len(head.Timeline) != 2 {
		t.Fatalf("expected 2 timeline points, got %d", len(head.Timeline))
	}
	if dash.Symptoms[1].Name != "nausea" || dash.Symptoms[1].Occurrences != 1 {
		t.Fatalf("unexpected nausea rollup %+v", dash.Symptoms[1])
	}
	if dash.Stats.AvgSeverity != 4.3 {
		t.Fatalf("expected avg 4.3, got %v", dash.Stats.AvgSeverity)
	}
	if dash.Stats.LastActivity == nil || !dash.Stats.LastActivity.Equal(history[2].Timestamp) {
		t.Fatalf("unexpected last activity %v", dash.Stats.LastActivity)
	}

	doc := Doctor(history, base)
	if doc.HighSeverityEvents != 1 {
		t.Fatalf("expected 1 high severity event, got %d", doc.HighSeverityEvents)
	}
	for _, f := range doc.RedFlags {
		if strings.Contains(f, "high-severity") {
			t.Fatalf("high severity flag raised below threshold: %v", doc.RedFlags)
		}
	}
}

func TestMedicationRollup(t *testing.T) {
	history := []pkg.Interaction{turn(0, 2), turn(1, 2), turn(2, 2)}
	history[0].Medications = []pkg.MedicationEntry{{Name: "iron", Taken: false}, {Name: "folic acid", Taken: true, EffectNoted: "less tired"}}
	history[1].Medications = []pkg.MedicationEntry{{Name: "folic acid", Taken: true}}
	history[2].Medications = []pkg.MedicationEntry{{Name: "iron", Taken: true}}

	meds := Medications(history)
	if len(meds) != 2 || meds[0].Name != "folic acid" {
		t.Fatalf("expected folic acid first, got %+v", meds)
	}
	if meds[0].TimesTaken != 2 || len(meds[0].Effects) != 1 {
		t.Fatalf("unexpected folic acid rollup %+v", meds[0])
	}
	if meds[1].TimesTaken != 1 || meds[1].TimesSkipped != 1 || !meds[1].LastMentioned.Equal(history[2].Timestamp) {
		t.Fatalf("unexpected iron rollup %+v", meds[1])
	}
}

func TestStatsReliefRate(t *testing.T) {
	history := []pkg.Interaction{turn(0, 2), turn(1, 2), turn(2, 2)}
	history[0].ReliefNoted = true
	if got := ComputeStats(history).ReliefRate; got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
	history[1].ReliefNoted = true
	if got := ComputeStats(history).ReliefRate; got != 67 {
		t.Fatalf("expected 67, got %d", got)
	}
	if st := ComputeStats(nil); st.ReliefRate != 0 || st.LastActivity != nil {
		t.Fatalf("unexpected empty stats %+v", st)
	}
}

func TestPageNewestFirst(t *testing.T) {
	var history []pkg.Interaction
	for i := 0; i < 5; i++ {
		history = append(history, turn(i, i+1))
	}
	p := Page(history, 1, 2)
	if len(p.History) != 2 || p.History[0].Severity != 5 || p.History[1].Severity != 4 {
		t.Fatalf("unexpected first page %+v", p.History)
	}
	if p.Pagination.TotalPages != 3 || p.Pagination.Total != 5 {
		t.Fatalf("unexpected pagination %+v", p.Pagination)
	}
	last := Page(history, 3, 2)
	if len(last.History) != 1 || last.History[0].Severity != 1 {
		t.Fatalf("unexpected last page %+v", last.History)
	}
	if beyond := Page(history, 9, 2); len(beyond.History) != 0 {
		t.Fatalf("expected empty page, got %d", len(beyond.History))
	}
	if def := Page(history, 0, 0); def.Pagination.Page != 1 || def.Pagination.Limit != DefaultPageSize {
		t.Fatalf("unexpected defaults %+v", def.Pagination)
	}
}

func TestPageHugeValues(t *testing.T) {
	history := []pkg.Interaction{turn(0, 3)}

	p := Page(history, math.MaxInt, 2)
	if len(p.History) != 0 || p.Pagination.TotalPages != 1 {
		t.Fatalf("unexpected page %+v", p)
	}
	p = Page(history, 2, math.MaxInt)
	if len(p.History) != 0 || p.Pagination.Limit != MaxPageSize {
		t.Fatalf("limit should be capped, got %+v", p.Pagination)
	}
	p = Page(history, 1, math.MaxInt)
	if len(p.History) != 1 || p.Pagination.TotalPages != 1 {
		t.Fatalf("unexpected first page %+v", p)
	}
	if empty := Page(nil, math.MaxInt, math.MaxInt); len(empty.History) != 0 || empty.Pagination.TotalPages != 0 {
		t.Fatalf("unexpected empty page %+v", empty)
	}
}

func TestDashboardSummariesNewestFirst(t *testing.T) {
	rec := &pkg.UserHealthRecord{}
	for i := 0; i < 7; i++ {
		rec.Summaries = append(rec.Summaries, pkg.PeriodSummary{ID: string(rune('a' + i))})
	}
	dash := Dashboard(rec)
	if len(dash.Summaries) != 5 || dash.Summaries[0].ID != "g" || dash.Summaries[4].ID != "c" {
		t.Fatalf("unexpected summaries %+v", dash.Summaries)
	}
	empty := Dashboard(nil)
	if empty.Symptoms == nil || empty.Stats.TotalInteractions != 0 {
		t.Fatalf("unexpected empty dashboard %+v", empty)
	}
}
