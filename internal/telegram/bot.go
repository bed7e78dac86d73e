package telegram

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/logger"
	"github.com/dvloznov/budget-bot/internal/pipeline"
)

// Intro is the greeting for authorized users on /start and /help.
const Intro = "Hello! Send me any information about a transaction and I'll try to process it!"

// IntroDefault is shown to anyone not on the allowlist. The placeholder
// is replaced with the sender's ID so they can ask to be added.
const IntroDefault = `This is a private bot that helps with adding transactions to a budget by using an LLM.

Your User ID is %USER_ID%.`

const pollTimeout = 30 // seconds

// Processor turns one message of free text into a reply.
type Processor interface {
	Process(ctx context.Context, text string) (string, error)
}

// Authorizer decides whether a Telegram user may use the bot.
type Authorizer interface {
	Authorized(userID int64) bool
}

// Bot routes incoming updates to the processing pipeline and sends the
// replies back.
type Bot struct {
	client *Client
	proc   Processor
	auth   Authorizer
	log    zerolog.Logger
}

// NewBot wires a Bot API client to the pipeline.
func NewBot(client *Client, proc Processor, auth Authorizer, log zerolog.Logger) *Bot {
	return &Bot{client: client, proc: proc, auth: auth, log: log}
}

// HandleUpdate processes one update end to end. Only private-chat text
// messages are acted on; anything else is dropped.
func (b *Bot) HandleUpdate(ctx context.Context, upd Update) {
	msg := upd.Message
	if msg == nil || msg.From == nil {
		return
	}

	log := b.log.With().
		Str("request_id", uuid.NewString()).
		Int64("user_id", msg.From.ID).
		Str("chat_type", msg.Chat.Type).
		Logger()
	ctx = logger.WithContext(ctx, log)

	log.Info().Msg("incoming message")

	if msg.Chat.Type != "private" {
		return
	}
	// A photo or document comes with a caption instead of text.
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	if text == "" {
		return
	}

	if !b.auth.Authorized(msg.From.ID) {
		intro := strings.ReplaceAll(IntroDefault, "%USER_ID%", strconv.FormatInt(msg.From.ID, 10))
		b.reply(ctx, log, msg.Chat.ID, intro)
		return
	}

	if text == "/start" || text == "/help" {
		log.Debug().Msg("sending intro")
		b.reply(ctx, log, msg.Chat.ID, Intro)
		return
	}

	reply, err := b.proc.Process(ctx, text)
	if err != nil {
		b.reply(ctx, log, msg.Chat.ID, pipeline.UserErrorMessage(err))
		return
	}
	if reply == "" {
		return
	}
	b.reply(ctx, log, msg.Chat.ID, reply)
}

func (b *Bot) reply(ctx context.Context, log zerolog.Logger, chatID int64, text string) {
	if err := b.client.SendMessage(ctx, chatID, text); err != nil {
		log.Error().Err(err).Msg("sending reply")
	}
}

// Poll long-polls for updates until ctx is canceled. Each update is
// handled synchronously so replies arrive in order.
func (b *Bot) Poll(ctx context.Context) error {
	// Clear any webhook left from a previous run; polling and webhooks
	// are mutually exclusive on the Bot API side.
	if err := b.client.DeleteWebhook(ctx, true); err != nil {
		return err
	}

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.client.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.log.Warn().Err(err).Msg("polling failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}

