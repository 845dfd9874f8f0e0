// Package web exposes the conversation controller to the browser widget over
// a websocket. One connection owns one controller instance.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/kamafile/onboarding-bridge/internal/conversation"
	"github.com/kamafile/onboarding-bridge/internal/identity"
)

const (
	anonCookieName   = "onboard_uid"
	anonCookieMaxAge = 180 * 24 * time.Hour
)

// intent is what the widget sends: open the conversation, free text, or a
// quick-reply tap.
type intent struct {
	Type    string `json:"type"` // "start" | "message" | "quick_reply"
	Text    string `json:"text,omitempty"`
	Title   string `json:"title,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// update is pushed to the widget after every conversation change.
type update struct {
	Type     string                 `json:"type"`
	Phase    conversation.Phase     `json:"phase"`
	Pending  bool                   `json:"pending"`
	Messages []conversation.Message `json:"messages"`
}

type SocketHandler struct {
	transport     conversation.Transport
	identities    identity.Store
	allowedOrigin string
	log           zerolog.Logger
}

func NewSocketHandler(transport conversation.Transport, identities identity.Store, allowedOrigin string, log zerolog.Logger) *SocketHandler {
	return &SocketHandler{
		transport:     transport,
		identities:    identities,
		allowedOrigin: allowedOrigin,
		log:           log,
	}
}

func (h *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	uid := h.userIdentifier(w, r)

	opts := &websocket.AcceptOptions{}
	if h.allowedOrigin == "*" {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = []string{h.allowedOrigin}
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	h.log.Info().Str("user_identifier", uid).Msg("widget connected")

	store := conversation.NewStore()
	ctrl := conversation.NewController(store, h.transport, "web", uid,
		conversation.WithControllerLogger(h.log.With().Str("user_identifier", uid).Logger()),
	)
	// Widget closed: drop whatever is still in flight instead of applying it
	// to a dead surface.
	defer ctrl.Reset()

	ctx := r.Context()

	changes, cancel := store.Subscribe()
	defer cancel()

	go h.pushUpdates(ctx, conn, ctrl, changes)

	// Opening the widget opens the conversation.
	ctrl.Start(ctx)

	for {
		var in intent
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			h.log.Debug().Err(err).Msg("widget disconnected")
			return
		}

		switch in.Type {
		case "start":
			ctrl.Start(ctx)
		case "message":
			ctrl.SubmitText(ctx, in.Text)
		case "quick_reply":
			ctrl.SubmitQuickReply(ctx, conversation.QuickReply{Title: in.Title, Payload: in.Payload})
		default:
			h.log.Debug().Str("type", in.Type).Msg("unknown widget intent")
		}
	}
}

func (h *SocketHandler) pushUpdates(ctx context.Context, conn *websocket.Conn, ctrl *conversation.Controller, changes <-chan struct{}) {
	// Initial snapshot so a reconnecting widget renders immediately.
	h.write(ctx, conn, ctrl)

	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			h.write(ctx, conn, ctrl)
		}
	}
}

func (h *SocketHandler) write(ctx context.Context, conn *websocket.Conn, ctrl *conversation.Controller) {
	out := update{
		Type:     "conversation",
		Phase:    ctrl.Phase(),
		Pending:  ctrl.Pending(),
		Messages: ctrl.Store().Snapshot(),
	}
	if err := wsjson.Write(ctx, conn, out); err != nil {
		h.log.Debug().Err(err).Msg("widget write failed")
	}
}

// userIdentifier resolves the device identity from the anonymous cookie,
// minting and registering a new one on first visit. The cookie is refreshed
// on every handshake.
func (h *SocketHandler) userIdentifier(w http.ResponseWriter, r *http.Request) string {
	uid := ""
	if c, err := r.Cookie(anonCookieName); err == nil && identity.Valid(c.Value) {
		uid = c.Value
	} else {
		uid = identity.Generate()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     anonCookieName,
		Value:    uid,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if _, err := h.identities.LoadOrStore(r.Context(), uid, uid); err != nil {
		h.log.Warn().Err(err).Msg("identity registration failed")
	}

	return uid
}
