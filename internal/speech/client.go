package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// Transcript is the result of speech-to-text.
type Transcript struct {
	Text     string
	Language string
}

// Transcriber converts recorded audio to text.
type Transcriber interface {
	// Transcribe detects the language automatically when languageHint is empty.
	Transcribe(ctx context.Context, audio []byte, filename, languageHint string) (Transcript, error)
}

// Translator converts text between languages.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Synthesize returns WAV bytes spoken in language.
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

// MaxSynthesisRunes is the longest text the provider accepts per request.
const MaxSynthesisRunes = 500

// Client talks to the speech provider for all three operations.
type Client struct {
	APIKey   string
	BaseURL  string
	STTModel string
	TTSModel string
	Speaker  string
	HTTP     *http.Client
}

// ensure this satisfies the interfaces
var (
	_ Transcriber = (*Client)(nil)
	_ Translator  = (*Client)(nil)
	_ Synthesizer = (*Client)(nil)
)

// NewClient constructs a Client with an explicit request timeout.
func NewClient(apiKey, baseURL, sttModel, ttsModel, speaker string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("invalid url for speech client %q", baseURL)
	}
	return &Client{
		APIKey:   apiKey,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		STTModel: sttModel,
		TTSModel: ttsModel,
		Speaker:  speaker,
		HTTP:     &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 15 * time.Second}
	}
	return c.HTTP
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("api-subscription-key", c.APIKey)
	res, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return fmt.Errorf("speech api %s: status %d: %s", req.URL.Path, res.StatusCode, truncateBody(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// Transcribe uploads the audio as multipart form data.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename, languageHint string) (Transcript, error) {
	if len(audio) == 0 {
		return Transcript{}, errors.New("no audio to transcribe")
	}
	if filename == "" {
		filename = "recording.wav"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Transcript{}, err
	}
	if _, err := part.Write(audio); err != nil {
		return Transcript{}, err
	}
	if c.STTModel != "" {
		_ = mw.WriteField("model", c.STTModel)
	}
	if hint := NormalizeLanguage(languageHint); hint != "" {
		_ = mw.WriteField("language_code", hint)
	}
	if err := mw.Close(); err != nil {
		return Transcript{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/speech-to-text", &buf)
	if err != nil {
		return Transcript{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		Transcript   string `json:"transcript"`
		LanguageCode string `json:"language_code"`
	}
	if err := c.do(req, &resp); err != nil {
		return Transcript{}, fmt.Errorf("transcribe: %w", err)
	}
	lang := NormalizeLanguage(resp.LanguageCode)
	if lang == "" {
		lang = NormalizeLanguage(languageHint)
	}
	return Transcript{Text: strings.TrimSpace(resp.Transcript), Language: lang}, nil
}

// Translate returns text unchanged when both sides are the same language.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" || SameLanguage(sourceLang, targetLang) {
		return text, nil
	}
	src, tgt := NormalizeLanguage(sourceLang), NormalizeLanguage(targetLang)
	if tgt == "" {
		return "", fmt.Errorf("unknown target language %q", targetLang)
	}
	if src == "" {
		src = "auto"
	}
	payload := map[string]string{
		"input":                text,
		"source_language_code": src,
		"target_language_code": tgt,
		"speaker_gender":       "Female",
		"mode":                 "formal",
	}
	var resp struct {
		TranslatedText string `json:"translated_text"`
	}
	if err := c.postJSON(ctx, "/translate", payload, &resp); err != nil {
		return "", fmt.Errorf("translate %s->%s: %w", src, tgt, err)
	}
	if strings.TrimSpace(resp.TranslatedText) == "" {
		return "", errors.New("translate: empty translation")
	}
	return resp.TranslatedText, nil
}

// Synthesize speaks text in language; the caller is expected to have mapped
// the language to a supported voice already.
func (c *Client) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("synthesize: empty text")
	}
	if utf8.RuneCountInString(text) > MaxSynthesisRunes {
		text = string([]rune(text)[:MaxSynthesisRunes])
	}
	payload := map[string]interface{}{
		"inputs":               []string{text},
		"target_language_code": language,
		"speaker":              c.Speaker,
		"model":                c.TTSModel,
	}
	var resp struct {
		Audios []string `json:"audios"`
	}
	if err := c.postJSON(ctx, "/text-to-speech", payload, &resp); err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	if len(resp.Audios) == 0 || resp.Audios[0] == "" {
		return nil, errors.New("synthesize: provider returned no audio")
	}
	audio, err := base64.StdEncoding.DecodeString(resp.Audios[0])
	if err != nil {
		return nil, fmt.Errorf("synthesize: decode audio: %w", err)
	}
	return audio, nil
}

func truncateBody(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max])
	}
	return string(b)
}
