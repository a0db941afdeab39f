package telephony

import (
	"net/url"

	"github.com/twilio/twilio-go/client"
)

// Validator checks the X-Twilio-Signature header of webhook requests.
type Validator struct {
	rv client.RequestValidator
}

func NewValidator(authToken string) *Validator {
	return &Validator{rv: client.NewRequestValidator(authToken)}
}

// Valid reports whether signature matches the full public url and the
// posted form parameters.
func (v *Validator) Valid(fullURL string, form url.Values, signature string) bool {
	params := make(map[string]string, len(form))
	for k, vals := range form {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	return v.rv.Validate(fullURL, params, signature)
}
