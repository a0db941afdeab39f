package core

// prompts.go holds every fixed text the service speaks or sends to a model.
// Spoken prompts are romanized Hindi with an English repeat so the greeting
// works whatever language the caller answers in.

const (
	// GreetingPrompt invites the caller to speak in any language.
	GreetingPrompt = "Namaste! Main Janani hoon. Beep ke baad apni kisi bhi bhasha mein bataiye ki aap kaisa mehsoos kar rahi hain, aur bolne ke baad hash dabaiye. " +
		"Hello! This is Janani. After the beep, tell me how you are feeling in any language, then press hash."

	// NoInputPrompt is spoken before re-recording when nothing was heard.
	NoInputPrompt = "Hamein aapki awaaz nahi aayi. Kripya beep ke baad dobara boliye. " +
		"We could not hear you. Please speak after the beep."

	// FollowUpPrompt opens every turn after the first answer.
	FollowUpPrompt = "Kya aap kuch aur poochna chahti hain? Beep ke baad boliye, ya call kaat dijiye. " +
		"Anything else? Speak after the beep, or hang up."

	// GoodbyeMessage ends a call after the retry budget is spent.
	GoodbyeMessage = "Dhanyavaad! Apna khayal rakhein. Thank you, take care."

	// ApologyMessage is the terminal reply when no recording or transcript
	// could be obtained.
	ApologyMessage = "Maaf kijiye, kuch galat ho gaya. Kripya baad mein dobara call karein. " +
		"Sorry, something went wrong. Please call again later."

	// MissedCallMessage answers an inbound call before the call-back.
	MissedCallMessage = "Aapka missed call mil gaya hai. Janani aapko abhi call karegi."

	// SMSReply answers an inbound SMS before the call-back.
	SMSReply = "Namaste! Janani se aapko ek call aa raha hai."

	// SafeHarborMessage is the pivot-language guidance spoken when the
	// advisory service cannot answer.
	SafeHarborMessage = "I could not reach the health advisor right now. Please rest, drink plenty of water and eat light, regular meals. " +
		"If you have bleeding, severe pain, a bad headache, blurred vision, fever, or you cannot feel your baby move, contact your ASHA worker or the nearest health centre immediately."

	// DefaultPatientContext is sent to the advisory service when no other
	// context is configured.
	DefaultPatientContext = "Pregnant mother calling the Janani voice line."

	// translationInstruction is the LLM fallback for reply translation.
	translationInstruction = "Translate the following to %s using native script only. Provide ONLY the translation, nothing else:\n\n%s"

	// summarySystemPrompt is formatted with the period type, phone, the
	// window dates, interaction count, average severity and the timeline.
	summarySystemPrompt = `You are a maternal health doctor's assistant. Create a %s health summary for a patient.

PATIENT PHONE: %s
PERIOD: %s to %s
TOTAL INTERACTIONS: %d
AVERAGE SEVERITY: %.1f/10

INTERACTION TIMELINE:
%s

Generate a comprehensive summary with these sections:
1. OVERVIEW: Brief status of the patient's health during this period
2. SYMPTOMS TIMELINE: Track when each symptom started, persisted, or was relieved
3. MEDICATIONS: What was taken, when, and the effects noted
4. RELIEF/CURE TRACKING: If any symptoms were cured through medication, note the journey (symptom start, medication, cure)
5. DOCTOR NOTES: Key items a doctor should review, any red flags

Return ONLY valid JSON:
{
  "summary_english": "Complete summary in English for doctor review",
  "summary_native": "Complete summary in Hindi for patient",
  "symptoms_timeline": "Symptom progression: symptom started on X, persisted or relieved, cured by Y",
  "medications_timeline": "Medication adherence and effects",
  "doctor_notes": "Key items for doctor review, red flags, recommendations"
}`

	summaryUserPrompt = "Generate the %s summary now."
)
