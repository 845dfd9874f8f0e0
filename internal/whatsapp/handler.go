package whatsapp

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kamafile/onboarding-bridge/internal/conversation"
	"github.com/kamafile/onboarding-bridge/internal/identity"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// Handler receives Twilio WhatsApp webhooks and drives the per-user
// controller. Replies go back out through the Sender rather than the webhook
// response, so the TwiML body stays empty.
type Handler struct {
	registry   *Registry
	outbound   Sender
	identities identity.Store
	log        zerolog.Logger
}

func NewHandler(registry *Registry, outbound Sender, identities identity.Store, log zerolog.Logger) *Handler {
	return &Handler{
		registry:   registry,
		outbound:   outbound,
		identities: identities,
		log:        log,
	}
}

// HandleWebhook is the Twilio inbound-message endpoint. Status callbacks and
// bodyless events are acknowledged without touching any session.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.log.Warn().Err(err).Msg("webhook form parse failed")
		writeTwiML(w)
		return
	}

	from := r.PostFormValue("From")
	body := strings.TrimSpace(r.PostFormValue("Body"))

	if from == "" {
		if status := r.PostFormValue("MessageStatus"); status != "" {
			h.log.Debug().
				Str("message_sid", r.PostFormValue("MessageSid")).
				Str("status", status).
				Str("error_code", r.PostFormValue("ErrorCode")).
				Msg("twilio status callback")
		}
		writeTwiML(w)
		return
	}

	if body == "" {
		writeTwiML(w)
		return
	}

	identifier := NormalizePhoneNumber(from)
	h.log.Info().Str("from", identifier).Int("len", len(body)).Msg("inbound whatsapp message")

	// Register the identifier write-once; the phone number itself is the
	// stable identity on this channel.
	if _, err := h.identities.LoadOrStore(r.Context(), identifier, identifier); err != nil {
		h.log.Warn().Err(err).Msg("identity registration failed")
	}

	sess := h.registry.getOrCreate(identifier)
	sess.touch()

	h.dispatch(r.Context(), sess, body)
	h.relay(r.Context(), sess, identifier)

	writeTwiML(w)
}

// dispatch feeds one inbound text to the controller. When the newest bot
// message offered quick replies, a numeric or textual match is submitted as
// that reply; anything else goes through as free text.
func (h *Handler) dispatch(ctx context.Context, sess *session, body string) {
	if sess.ctrl.SessionID() == "" {
		// First contact: any message opens the conversation.
		sess.ctrl.Start(ctx)
		return
	}

	if qr, ok := matchQuickReply(body, sess.pendingQuickReplies()); ok {
		sess.ctrl.SubmitQuickReply(ctx, qr)
		return
	}
	sess.ctrl.SubmitText(ctx, body)
}

func (h *Handler) relay(ctx context.Context, sess *session, identifier string) {
	for _, msg := range sess.unrelayed() {
		if err := h.outbound.SendMessage(ctx, identifier, msg.Text, msg.QuickReplies); err != nil {
			h.log.Error().Err(err).Str("to", identifier).Msg("outbound whatsapp send failed")
		}
	}
}

// matchQuickReply resolves "1", an option title, or a raw payload against the
// currently offered quick replies.
func matchQuickReply(input string, replies []conversation.QuickReply) (conversation.QuickReply, bool) {
	if len(replies) == 0 {
		return conversation.QuickReply{}, false
	}

	trimmed := strings.TrimSpace(input)
	if n, err := strconv.Atoi(trimmed); err == nil && n >= 1 && n <= len(replies) {
		return replies[n-1], true
	}

	lowered := strings.ToLower(trimmed)
	for _, qr := range replies {
		if lowered == strings.ToLower(qr.Title) || lowered == strings.ToLower(qr.Payload) {
			return qr, true
		}
	}

	return conversation.QuickReply{}, false
}

func writeTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(emptyTwiML))
}
