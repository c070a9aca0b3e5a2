// Package discord publishes the dashboard and presence through a Discord bot.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/d3v1l1989/embywatch/internal/domain"
)

// Session is the subset of *discordgo.Session the messenger uses
type Session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UpdateWatchStatus(idle int, name string) error
}

// Messenger implements domain.Messenger on top of a Discord session
type Messenger struct {
	session Session
	logger  *slog.Logger
}

var _ domain.Messenger = (*Messenger)(nil)

// NewMessenger creates a new Messenger
func NewMessenger(session Session, logger *slog.Logger) *Messenger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Messenger{session: session, logger: logger}
}

// Open connects a bot session to the gateway. The caller closes it.
func Open(token string, logger *slog.Logger) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds

	ready := make(chan struct{}, 1)
	s.AddHandlerOnce(func(_ *discordgo.Session, r *discordgo.Ready) {
		logger.Info("discord bot ready", "user", r.User.Username, "guilds", len(r.Guilds))
		ready <- struct{}{}
	})

	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("open discord gateway: %w", err)
	}

	select {
	case <-ready:
	case <-time.After(30 * time.Second):
		logger.Warn("discord ready event not received, continuing")
	}
	return s, nil
}

// SendDashboard posts a new dashboard message and returns its ID
func (m *Messenger) SendDashboard(ctx context.Context, channelID string, d *domain.Dashboard) (string, error) {
	msg, err := m.session.ChannelMessageSendEmbed(channelID, Embed(d), discordgo.WithContext(ctx))
	if err != nil {
		return "", mapError(err)
	}
	return msg.ID, nil
}

// EditDashboard replaces the embed of an existing message
func (m *Messenger) EditDashboard(ctx context.Context, channelID, messageID string, d *domain.Dashboard) error {
	_, err := m.session.ChannelMessageEditEmbed(channelID, messageID, Embed(d), discordgo.WithContext(ctx))
	return mapError(err)
}

// SetPresence shows text as a "Watching" activity
func (m *Messenger) SetPresence(_ context.Context, text string) error {
	if err := m.session.UpdateWatchStatus(0, text); err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	return nil
}

// mapError translates Discord REST errors into domain errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}

	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownMessage:
			return fmt.Errorf("%w: %s", domain.ErrMessageNotFound, restErr.Message.Message)
		case discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions:
			return fmt.Errorf("%w: %s", domain.ErrMessageForbidden, restErr.Message.Message)
		}
	}

	if restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", domain.ErrMessageNotFound, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", domain.ErrMessageForbidden, err)
		}
	}
	return err
}

// Embed converts a dashboard into a Discord embed
func Embed(d *domain.Dashboard) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       d.Title,
		Description: d.Description,
		Color:       d.Color,
	}
	if d.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: d.ThumbnailURL}
	}
	for _, f := range d.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if d.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: d.Footer, IconURL: d.FooterIconURL}
	}
	if !d.Timestamp.IsZero() {
		embed.Timestamp = d.Timestamp.Format(time.RFC3339)
	}
	return embed
}
