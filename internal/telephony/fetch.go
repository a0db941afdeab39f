package telephony

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"
)

// ErrRecordingUnavailable is returned when the recording could not be downloaded.
var ErrRecordingUnavailable = errors.New("recording unavailable")

// Fetcher downloads call recordings with the account credentials.
type Fetcher struct {
	AccountSID string
	AuthToken  string
	HTTP       *http.Client
	// Attempts bounds retries while the provider is still finalizing a
	// recording and answers 404.
	Attempts int
	Backoff  time.Duration
}

// NewFetcher constructs a Fetcher with the given request timeout.
func NewFetcher(accountSID, authToken string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		AccountSID: accountSID,
		AuthToken:  authToken,
		HTTP:       &http.Client{Timeout: timeout},
		Attempts:   3,
		Backoff:    500 * time.Millisecond,
	}
}

// Fetch returns the WAV bytes of the recording at recordingURL.
func (f *Fetcher) Fetch(ctx context.Context, recordingURL string) ([]byte, error) {
	if recordingURL == "" {
		return nil, fmt.Errorf("%w: no recording url", ErrRecordingUnavailable)
	}
	if path.Ext(recordingURL) == "" {
		recordingURL += ".wav"
	}
	attempts := f.Attempts
	if attempts < 1 {
		attempts = 1
	}
	client := f.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.Backoff):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
		if err != nil {
			return nil, err
		}
		if f.AccountSID != "" {
			req.SetBasicAuth(f.AccountSID, f.AuthToken)
		}
		res, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		switch {
		case err != nil:
			lastErr = err
		case res.StatusCode == http.StatusNotFound:
			lastErr = fmt.Errorf("status %d", res.StatusCode)
		case res.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("%w: status %d", ErrRecordingUnavailable, res.StatusCode)
		case len(body) == 0:
			return nil, fmt.Errorf("%w: empty body", ErrRecordingUnavailable)
		default:
			return body, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrRecordingUnavailable, lastErr)
}
