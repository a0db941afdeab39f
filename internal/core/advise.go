package core

import (
	"context"
	"fmt"
	"strings"

	"janani-health/internal/advisory"
	"janani-health/internal/aggregate"
	"janani-health/internal/speech"
	"janani-health/pkg"
)

// historyTurns is how many prior calls are replayed to the advisory service.
const historyTurns = 3

// AdviceService asks the advisory service about a pivot-language query and
// substitutes the safe-harbor message when it cannot answer.
type AdviceService struct {
	Advisor        advisory.Advisor
	PatientContext string
}

// NewAdviceService constructs an AdviceService.
func NewAdviceService(a advisory.Advisor, patientContext string) *AdviceService {
	if patientContext == "" {
		patientContext = DefaultPatientContext
	}
	return &AdviceService{Advisor: a, PatientContext: patientContext}
}

// Advise returns the English answer. On error SafeHarborMessage is returned
// together with the error so the caller can still speak something.
func (s *AdviceService) Advise(ctx context.Context, englishQuery string, history []pkg.Interaction) (string, error) {
	ans, err := s.Advisor.Ask(ctx, advisory.Request{
		Query:          englishQuery,
		LanguageCode:   speech.Pivot,
		PatientContext: patientContext(s.PatientContext, history),
		History:        priorTurns(history),
		Source:         pkg.SourceVoiceCall,
	})
	if err != nil {
		return SafeHarborMessage, err
	}
	return ans.EnglishAnswer, nil
}

// patientContext appends the caller's recent symptoms to the base context.
func patientContext(base string, history []pkg.Interaction) string {
	syms := aggregate.Symptoms(history)
	if len(syms) == 0 {
		return base
	}
	if len(syms) > 5 {
		syms = syms[:5]
	}
	parts := make([]string, 0, len(syms))
	for _, s := range syms {
		parts = append(parts, fmt.Sprintf("%s (%s)", s.Name, s.Status))
	}
	return base + " Previously reported symptoms: " + strings.Join(parts, ", ") + "."
}

// priorTurns converts the last few calls into a conversation history,
// skipping error turns.
func priorTurns(history []pkg.Interaction) []advisory.Turn {
	turns := []advisory.Turn{}
	start := len(history) - historyTurns
	if start < 0 {
		start = 0
	}
	for _, in := range history[start:] {
		if in.SeverityScore == 0 || in.UserMessageEnglish == "" {
			continue
		}
		turns = append(turns,
			advisory.Turn{Role: "user", Content: in.UserMessageEnglish},
			advisory.Turn{Role: "assistant", Content: in.ReplyEnglish},
		)
	}
	return turns
}
