// Package notifier forwards login progress to a Telegram chat
package notifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
)

const requestTimeout = 10 * time.Second

// Sender is the subset of the Telegram client the notifier uses
type Sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *tgbot.SendPhotoParams) (*models.Message, error)
}

// TelegramNotifier sends the login QR code and the final outcome to one chat
type TelegramNotifier struct {
	sender Sender
	chatID int64
	logger zerolog.Logger
}

// NewTelegramBot creates the Telegram client
func NewTelegramBot(token string) (*tgbot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}

	bot, err := tgbot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return bot, nil
}

// NewTelegramNotifier creates a notifier posting to chatID
func NewTelegramNotifier(sender Sender, chatID int64, logger zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender: sender,
		chatID: chatID,
		logger: logger,
	}
}

// Emit forwards qrcode-ready and terminal events; the rest are ignored
func (n *TelegramNotifier) Emit(ctx context.Context, e entities.ProgressEvent) error {
	msgCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var err error
	switch {
	case e.Step == entities.StepQRCodeReady && e.QR != nil:
		err = n.sendQR(msgCtx, e)
	case e.Step.IsTerminal():
		_, err = n.sender.SendMessage(msgCtx, &tgbot.SendMessageParams{
			ChatID: n.chatID,
			Text:   outcomeText(e),
		})
	default:
		return nil
	}

	if err != nil {
		n.logger.Error().Err(err).
			Str("flow_id", e.FlowID).
			Str("step", string(e.Step)).
			Msg("failed to notify telegram chat")
		return fmt.Errorf("telegram notify %s: %w", e.Step, err)
	}

	n.logger.Debug().Str("flow_id", e.FlowID).Str("step", string(e.Step)).Msg("Telegram notification sent")
	return nil
}

func (n *TelegramNotifier) sendQR(ctx context.Context, e entities.ProgressEvent) error {
	caption := "Scan this QR code with the Xiaohongshu app to log in"
	if e.FlowID != "" {
		caption += fmt.Sprintf(" (flow %s)", e.FlowID)
	}

	png, err := base64.StdEncoding.DecodeString(e.QR.Image)
	if err != nil || len(png) == 0 {
		// No usable image, fall back to the login URL when there is one
		if e.QR.URL == "" {
			return fmt.Errorf("qr code has no image or url")
		}
		_, err = n.sender.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: n.chatID,
			Text:   caption + "\n" + e.QR.URL,
		})
		return err
	}

	_, err = n.sender.SendPhoto(ctx, &tgbot.SendPhotoParams{
		ChatID:  n.chatID,
		Photo:   &models.InputFileUpload{Filename: "login-qr.png", Data: bytes.NewReader(png)},
		Caption: caption,
	})
	return err
}

func outcomeText(e entities.ProgressEvent) string {
	switch e.Step {
	case entities.StepConfirmed:
		if e.UserID != "" {
			return fmt.Sprintf("Login confirmed for user %s", e.UserID)
		}
		return "Login confirmed"
	case entities.StepTimeout:
		return "Login timed out, the QR code was not confirmed"
	default:
		if e.Reason != "" {
			return fmt.Sprintf("Login %s: %s", e.Step, e.Reason)
		}
		return fmt.Sprintf("Login %s", e.Step)
	}
}

var _ deps.ProgressSink = (*TelegramNotifier)(nil)
