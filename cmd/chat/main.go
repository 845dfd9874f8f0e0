// Terminal shell over the onboarding controller, mostly for poking at the
// flow without a browser or a phone.
package main

import (
	"bufio"
	"context"
	"fmt"
	stdlog "log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kamafile/onboarding-bridge/internal/config"
	"github.com/kamafile/onboarding-bridge/internal/conversation"
	"github.com/kamafile/onboarding-bridge/internal/identity"
	"github.com/kamafile/onboarding-bridge/internal/logger"
	"github.com/kamafile/onboarding-bridge/internal/onboarding"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("config error: %v", err)
	}

	log := logger.New(cfg.Log.Level, true)

	store, err := identity.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("identity store error")
	}
	defer store.Close()

	ctx := context.Background()

	resolver := identity.NewResolver(store, identity.WithLogger(log))
	uid := resolver.UserIdentifier(ctx)

	client := onboarding.NewClient(cfg.Onboarding.URL, onboarding.WithToken(cfg.Onboarding.Token))

	// No controller logger here: log lines would interleave with the prompt.
	// The service only accepts web|whatsapp as channels, so the terminal
	// shell rides on web.
	conv := conversation.NewStore()
	ctrl := conversation.NewController(conv, client, "web", uid)

	fmt.Printf("connected as %s. type a message, a quick-reply number, /status or /quit\n\n", uid)

	if found, err := client.FindSession(ctx, uid); err == nil && found.Found {
		fmt.Println("(resuming your previous conversation)")
	}

	rendered := 0
	render := func() {
		snapshot := conv.Snapshot()
		for _, msg := range snapshot[rendered:] {
			switch msg.Sender {
			case conversation.SenderUser:
				fmt.Printf("you> %s\n", msg.Text)
			case conversation.SenderBot:
				fmt.Printf("bot> %s\n", msg.Text)
				for i, qr := range msg.QuickReplies {
					fmt.Printf("       %d. %s\n", i+1, qr.Title)
				}
			}
		}
		rendered = len(snapshot)
	}

	ctrl.Start(ctx)
	render()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		if line == "/quit" || line == "/exit" {
			break
		}

		if line == "/status" {
			printStatus(ctx, client, ctrl.SessionID())
			continue
		}

		if qr, ok := pickQuickReply(line, conv); ok {
			ctrl.SubmitQuickReply(ctx, qr)
		} else {
			ctrl.SubmitText(ctx, line)
		}
		render()
	}

	ctrl.Reset()
}

func printStatus(ctx context.Context, client *onboarding.Client, sessionID string) {
	if sessionID == "" {
		fmt.Println("(no session yet)")
		return
	}

	status, err := client.Status(ctx, sessionID)
	if err != nil {
		fmt.Printf("(status unavailable: %v)\n", err)
		return
	}

	step := "-"
	if status.CurrentStep != nil && *status.CurrentStep != "" {
		step = *status.CurrentStep
	}
	fmt.Printf("session=%s status=%s step=%s channel=%s\n",
		status.SessionID, status.Status, step, status.Channel)
}

// pickQuickReply maps a typed number onto the newest bot message's offered
// replies.
func pickQuickReply(line string, conv *conversation.Store) (conversation.QuickReply, bool) {
	n, err := strconv.Atoi(line)
	if err != nil {
		return conversation.QuickReply{}, false
	}

	last, ok := conv.Last()
	if !ok || last.Sender != conversation.SenderBot {
		return conversation.QuickReply{}, false
	}
	if n < 1 || n > len(last.QuickReplies) {
		return conversation.QuickReply{}, false
	}
	return last.QuickReplies[n-1], true
}
