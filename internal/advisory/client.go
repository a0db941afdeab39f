// Package advisory calls the retrieval-augmented maternal health advisory
// service. The service answers in English and optionally localizes.
package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Turn is one prior exchange handed to the service as conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the query sent to the advisory service.
type Request struct {
	Query          string `json:"query"`
	LanguageCode   string `json:"language_code"`
	PatientContext string `json:"patient_data"`
	History        []Turn `json:"history"`
	UserPhone      string `json:"user_phone,omitempty"`
	Source         string `json:"source"`
}

// Answer is the advisory reply.
type Answer struct {
	LocalizedAnswer  string `json:"localized_answer"`
	EnglishAnswer    string `json:"english_answer"`
	VerifiedLanguage string `json:"verified_language"`
	EnglishQuery     string `json:"english_query"`
}

// Advisor answers pivot-language health questions.
type Advisor interface {
	Ask(ctx context.Context, req Request) (Answer, error)
}

// Client is the HTTP implementation of Advisor.
type Client struct {
	URL  string
	HTTP *http.Client
}

var _ Advisor = (*Client)(nil)

// NewClient constructs a Client posting to url with the given timeout.
func NewClient(url string, timeout time.Duration) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("invalid url for advisory client %q", url)
	}
	return &Client{URL: url, HTTP: &http.Client{Timeout: timeout}}, nil
}

// Ask posts the query and decodes the answer. An answer without English
// text is an error so the caller can fall back.
func (c *Client) Ask(ctx context.Context, req Request) (Answer, error) {
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 10 * time.Second}
	}
	if req.History == nil {
		req.History = []Turn{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Answer{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return Answer{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return Answer{}, fmt.Errorf("advisory request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 200))
		return Answer{}, fmt.Errorf("advisory status %d: %s", res.StatusCode, msg)
	}
	var ans Answer
	if err := json.NewDecoder(res.Body).Decode(&ans); err != nil {
		return Answer{}, fmt.Errorf("decode advisory answer: %w", err)
	}
	ans.EnglishAnswer = strings.TrimSpace(ans.EnglishAnswer)
	if ans.EnglishAnswer == "" {
		return Answer{}, errors.New("advisory answer is empty")
	}
	return ans, nil
}
