package notification

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/varoOP/mediahub/internal/domain"
)

// Service fans notifications out to every configured channel.
type Service struct {
	discord *DiscordService
}

func NewService(log zerolog.Logger, webhookURL string) domain.NotificationService {
	var discord *DiscordService
	if webhookURL != "" {
		discord = NewDiscordService(log, webhookURL)
	}

	return &Service{
		discord: discord,
	}
}

func (s *Service) SendCollected(ctx context.Context, record domain.Record) error {
	if s.discord != nil {
		if err := s.discord.SendCollected(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) SendError(ctx context.Context, err error) error {
	if s.discord != nil {
		if err := s.discord.SendError(ctx, err); err != nil {
			return err
		}
	}
	return nil
}
