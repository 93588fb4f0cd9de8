package domain

import "strings"

// SourceType identifies the remote site a record was extracted from.
type SourceType string

const (
	SourceDouban  SourceType = "douban"
	SourceBangumi SourceType = "bangumi"
	SourceTMDb    SourceType = "tmdb"
	SourceMaoyan  SourceType = "maoyan"
)

// SourceTypes lists every known source in display order.
func SourceTypes() []SourceType {
	return []SourceType{SourceDouban, SourceBangumi, SourceTMDb, SourceMaoyan}
}

func (s SourceType) Valid() bool {
	switch s {
	case SourceDouban, SourceBangumi, SourceTMDb, SourceMaoyan:
		return true
	}
	return false
}

func (s SourceType) String() string {
	return string(s)
}

func ParseSourceType(s string) (SourceType, error) {
	st := SourceType(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", NewUserInputError("source", "must be one of douban, bangumi, tmdb, maoyan")
	}
	return st, nil
}

// MediaType is the kind of media a record describes.
type MediaType string

const (
	MediaMovie MediaType = "movie"
	MediaTV    MediaType = "tv"
	MediaAnime MediaType = "anime"
)

func (m MediaType) Valid() bool {
	switch m {
	case MediaMovie, MediaTV, MediaAnime:
		return true
	}
	return false
}

func (m MediaType) String() string {
	return string(m)
}

// ParseMediaType accepts movie, tv or anime in any case.
func ParseMediaType(s string) (MediaType, error) {
	m := MediaType(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", NewUserInputError("type", "must be one of movie, tv, anime")
	}
	return m, nil
}
