package dedupe

import (
	"github.com/rs/zerolog"
	"github.com/varoOP/mediahub/internal/domain"
)

type Service interface {
	Records(records []domain.Record) (int, []domain.Record)
}

type service struct {
	log zerolog.Logger
}

func NewService(log zerolog.Logger) Service {
	return &service{
		log: log.With().Str("module", "dedupe").Logger(),
	}
}

// Records drops records whose identity was already seen, keeping the first
// occurrence and the input order. It returns the number of dropped records.
func (s *service) Records(records []domain.Record) (int, []domain.Record) {
	seen := make(map[domain.RecordKey]struct{}, len(records))
	out := make([]domain.Record, 0, len(records))

	for _, r := range records {
		if _, ok := seen[r.Key()]; ok {
			s.log.Debug().
				Str("source", string(r.SourceType)).
				Str("id", r.SourceID).
				Str("title", r.Title()).
				Msg("Dropping duplicate record")
			continue
		}
		seen[r.Key()] = struct{}{}
		out = append(out, r)
	}

	dupes := len(records) - len(out)
	if dupes > 0 {
		s.log.Info().Int("dupe_count", dupes).Msg("Found duplicates")
	}
	return dupes, out
}
