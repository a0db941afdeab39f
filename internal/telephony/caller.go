package telephony

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Caller places outbound calls that start at the greeting webhook.
type Caller interface {
	CallBack(ctx context.Context, to string) (string, error)
}

type callsAPI interface {
	CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error)
}

// TwilioCaller creates calls through the Twilio REST API.
type TwilioCaller struct {
	API         callsAPI
	From        string
	GreetingURL string
}

var _ Caller = (*TwilioCaller)(nil)

// NewTwilioCaller authenticates with the account credentials.
func NewTwilioCaller(accountSID, authToken, from, greetingURL string) *TwilioCaller {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioCaller{API: client.Api, From: from, GreetingURL: greetingURL}
}

// CallBack dials to and returns the new call's sid.
func (c *TwilioCaller) CallBack(ctx context.Context, to string) (string, error) {
	if to == "" {
		return "", errors.New("call back: missing destination number")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	params := &twilioApi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(c.From)
	params.SetUrl(c.GreetingURL)
	params.SetMethod("POST")

	call, err := c.API.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("create call to %s: %w", to, err)
	}
	if call.Sid == nil {
		return "", nil
	}
	return *call.Sid, nil
}
