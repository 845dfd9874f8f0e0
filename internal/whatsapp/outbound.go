package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kamafile/onboarding-bridge/internal/conversation"
)

// Sender delivers bot messages to a WhatsApp user.
type Sender interface {
	SendMessage(ctx context.Context, to, text string, quickReplies []conversation.QuickReply) error
}

// TwilioSender sends messages through the Twilio Messages API. Without
// credentials it runs in mock mode: messages are logged instead of sent, so
// the bridge stays usable in local development.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
	log        zerolog.Logger
}

func NewTwilioSender(accountSID, authToken, from string, log zerolog.Logger) *TwilioSender {
	s := &TwilioSender{
		accountSID: strings.TrimSpace(accountSID),
		authToken:  strings.TrimSpace(authToken),
		from:       from,
		baseURL:    "https://api.twilio.com",
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
	if !s.Configured() {
		s.log.Warn().Msg("twilio credentials not set, whatsapp sender running in mock mode")
	}
	return s
}

// Configured reports whether real Twilio credentials are present.
func (s *TwilioSender) Configured() bool {
	return s.accountSID != "" && s.authToken != ""
}

func (s *TwilioSender) SendMessage(ctx context.Context, to, text string, quickReplies []conversation.QuickReply) error {
	body := renderMessage(text, quickReplies)

	if !s.Configured() {
		s.log.Info().Str("to", to).Str("body", body).Msg("[whatsapp mock] message")
		return nil
	}

	form := url.Values{}
	form.Set("From", s.from)
	form.Set("To", FormatPhoneNumber(to))
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return errors.New("twilio api error: " + resp.Status + " body=" + string(raw))
	}

	return nil
}

// renderMessage appends quick replies as a numbered list. WhatsApp has no
// native quick-reply buttons over the plain Messages API, so the user answers
// with a number or the option text and the service normalizes it.
func renderMessage(text string, quickReplies []conversation.QuickReply) string {
	if len(quickReplies) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n")
	for i, qr := range quickReplies {
		title := qr.Title
		if title == "" {
			title = qr.Payload
		}
		fmt.Fprintf(&b, "\n%d. %s", i+1, title)
	}
	return b.String()
}
