// Package mattermost provides webhook client for announcing rewards in Mattermost.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/config"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/events"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/pkg/logger"
)

const sendTimeout = 10 * time.Second

// Client handles Mattermost webhook notifications.
type Client struct {
	webhookURL string
	channel    string
	username   string
	enabled    bool
	http       *http.Client
	log        *logger.Logger
}

// NewClient creates a new Mattermost client.
func NewClient(cfg *config.MattermostConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		username:   cfg.Username,
		enabled:    cfg.Enabled,
		http:       http.DefaultClient,
		log:        log.Component("mattermost"),
	}
}

// Message represents a Mattermost message payload.
type Message struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment.
type Attachment struct {
	Fallback string  `json:"fallback,omitempty"`
	Color    string  `json:"color,omitempty"`
	Title    string  `json:"title,omitempty"`
	Text     string  `json:"text,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
	Footer   string  `json:"footer,omitempty"`
}

// Field represents a message field.
type Field struct {
	Short bool   `json:"short"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// SendMessage sends a message to Mattermost.
func (c *Client) SendMessage(ctx context.Context, msg *Message) error {
	if !c.enabled {
		c.log.Debug().Msg("Mattermost is disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}
	if msg.Username == "" {
		msg.Username = c.username
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Mattermost: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mattermost returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent message to Mattermost")

	return nil
}

// SendAchievementUnlocked announces a new achievement holder.
func (c *Client) SendAchievementUnlocked(ctx context.Context, e events.AchievementUnlocked) error {
	fields := []Field{{Short: true, Title: "Holder", Value: e.Awardable.String()}}
	if e.Source != "" {
		fields = append(fields, Field{Short: true, Title: "Source", Value: e.Source})
	}
	if e.Reason != "" {
		fields = append(fields, Field{Short: false, Title: "Reason", Value: e.Reason})
	}

	return c.SendMessage(ctx, &Message{
		Text: fmt.Sprintf("🏆 **%s** unlocked **%s**", e.Awardable, e.Achievement.Name),
		Attachments: []Attachment{{
			Fallback: fmt.Sprintf("%s unlocked %s", e.Awardable, e.Achievement.Name),
			Color:    "#f2b705",
			Title:    e.Achievement.Name,
			Text:     e.Achievement.Description,
			Fields:   fields,
		}},
	})
}

// SendLevelReached announces a level-up.
func (c *Client) SendLevelReached(ctx context.Context, e events.LevelReached) error {
	level := fmt.Sprintf("level %d", e.To)
	if e.LevelName != "" {
		level = fmt.Sprintf("level %d (%s)", e.To, e.LevelName)
	}
	return c.SendMessage(ctx, &Message{
		Text: fmt.Sprintf("⬆️ **%s** reached %s in %s `%s`", e.Awardable, level, e.Track, e.Slug),
	})
}

// Notify implements events.Notifier. Delivery failures are logged, never returned.
func (c *Client) Notify(ctx context.Context, event events.Event) {
	if !c.enabled {
		return
	}

	var err error
	switch e := event.(type) {
	case events.AchievementUnlocked:
		err = c.SendAchievementUnlocked(ctx, e)
	case events.LevelReached:
		err = c.SendLevelReached(ctx, e)
	default:
		return
	}
	if err != nil {
		c.log.Warn().
			Err(err).
			Str("event", string(event.Type())).
			Msg("Failed to announce event")
	}
}
