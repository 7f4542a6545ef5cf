package adapter

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Messenger delivers generated answers back to the user. It is an
// optional capability: the service answers over HTTP even when no
// gateway is configured.
type Messenger interface {
	Send(ctx context.Context, to, body string) error
}

type TwilioClient struct {
	client *twilio.RestClient
	from   string
}

// NewTwilio creates a WhatsApp messenger backed by the Twilio REST API.
// from is the sending WhatsApp number, e.g. "+14155238886".
func NewTwilio(accountSID, authToken, from string) (*TwilioClient, error) {
	if accountSID == "" || authToken == "" {
		return nil, goerr.New("twilio credentials are required")
	}
	if from == "" {
		return nil, goerr.New("twilio sender number is required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioClient{
		client: client,
		from:   whatsappAddr(from),
	}, nil
}

func (t *TwilioClient) Send(ctx context.Context, to, body string) error {
	// The Twilio SDK offers no context-aware call; honor cancellation
	// at least before dispatching.
	if err := ctx.Err(); err != nil {
		return goerr.Wrap(err, "message delivery cancelled")
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsappAddr(to))
	params.SetBody(body)

	if _, err := t.client.Api.CreateMessage(params); err != nil {
		return goerr.Wrap(err, "failed to send whatsapp message", goerr.V("to", to))
	}

	return nil
}

// whatsappAddr normalizes a phone number into the "whatsapp:+NNN" form
// Twilio expects. Numbers arriving from the webhook already carry the
// prefix.
func whatsappAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
