package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/mediahub/internal/domain"
)

const (
	colorGreen = 0x00ff00
	colorRed   = 0xff0000

	maxDescription = 300
)

// DiscordService implements NotificationService for Discord webhooks
type DiscordService struct {
	log        zerolog.Logger
	webhookURL string
	httpClient *http.Client
	now        func() time.Time
}

func NewDiscordService(log zerolog.Logger, webhookURL string) *DiscordService {
	return &DiscordService{
		log:        log.With().Str("module", "notification").Str("type", "discord").Logger(),
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

// SendCollected announces a record added to the collection.
func (s *DiscordService) SendCollected(ctx context.Context, record domain.Record) error {
	if s.webhookURL == "" {
		return nil
	}

	fields := []discordField{
		{Name: "Source", Value: string(record.SourceType), Inline: true},
		{Name: "Type", Value: string(record.MediaType), Inline: true},
	}
	if record.ReleaseDate != "" {
		fields = append(fields, discordField{Name: "Release", Value: record.ReleaseDate, Inline: true})
	}
	for _, r := range []struct {
		name   string
		rating domain.Rating
	}{
		{"Douban", record.RatingDouban},
		{"IMDb", record.RatingIMDb},
		{"Bangumi", record.RatingBangumi},
	} {
		if r.rating.Present() {
			fields = append(fields, discordField{Name: r.name, Value: r.rating.String(), Inline: true})
		}
	}

	embed := discordEmbed{
		Title:       "Added to collection: " + record.Title(),
		URL:         record.SourceURL,
		Description: truncate(record.Summary, maxDescription),
		Color:       colorGreen,
		Timestamp:   s.now().Format(time.RFC3339),
		Fields:      fields,
	}
	if record.PosterURL != "" {
		embed.Thumbnail = &discordImage{URL: record.PosterURL}
	}

	return s.sendWebhook(ctx, discordWebhook{Embeds: []discordEmbed{embed}})
}

// SendError sends an error notification with error details
func (s *DiscordService) SendError(ctx context.Context, err error) error {
	if s.webhookURL == "" {
		return nil
	}

	embed := discordEmbed{
		Title:       "mediahub error",
		Description: fmt.Sprintf("%s\n```%s```", domain.UserMessage(err), err.Error()),
		Color:       colorRed,
		Timestamp:   s.now().Format(time.RFC3339),
	}

	return s.sendWebhook(ctx, discordWebhook{Embeds: []discordEmbed{embed}})
}

func (s *DiscordService) sendWebhook(ctx context.Context, payload discordWebhook) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return errors.Wrap(err, "failed to create webhook request")
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send webhook request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	s.log.Debug().Msg("Discord notification sent successfully")
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

type discordWebhook struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	URL         string         `json:"url,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Thumbnail   *discordImage  `json:"thumbnail,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
}

type discordImage struct {
	URL string `json:"url"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}
