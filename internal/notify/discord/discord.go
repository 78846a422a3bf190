// Package discord delivers staff alerts to a Discord channel over the REST API.
package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/switchboard/internal/notify"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts alerts as embeds to one channel.
type Notifier struct {
	sess      session
	channelID string
}

// Opts holds parameters for creating a Notifier.
type Opts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real gateway.
	Session session
}

// New creates a Discord notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}

	n := &Notifier{channelID: opts.ChannelID, sess: opts.Session}
	if n.sess == nil {
		if opts.BotToken == "" {
			return nil, fmt.Errorf("discord: bot token is required")
		}
		s, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		n.sess = s
	}
	return n, nil
}

// Post sends one alert as a colored embed.
func (n *Notifier) Post(ctx context.Context, ev notify.Event) error {
	embed := &discordgo.MessageEmbed{
		Title:       ev.Title,
		Description: ev.Body,
		Color:       embedColor(ev.Severity),
	}
	if _, err := n.sess.ChannelMessageSendEmbed(n.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send embed: %w", err)
	}
	return nil
}

// embedColor converts the shared hex color hint to the integer Discord expects.
func embedColor(severity string) int {
	hex := strings.TrimPrefix(notify.Color(severity), "#")
	c, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return 0
	}
	return int(c)
}
