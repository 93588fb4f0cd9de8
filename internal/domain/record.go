package domain

import (
	"net/url"
	"regexp"
	"strings"
)

// Record is the canonical media item every source adapter produces.
// Empty text fields mean the source did not provide them.
type Record struct {
	SourceType     SourceType `json:"source_type" yaml:"source_type"`
	SourceID       string     `json:"source_id" yaml:"source_id"`
	SourceURL      string     `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	MediaType      MediaType  `json:"media_type" yaml:"media_type"`
	TitleLocalized string     `json:"title_localized,omitempty" yaml:"title_localized,omitempty"`
	TitleOriginal  string     `json:"title_original,omitempty" yaml:"title_original,omitempty"`
	ReleaseDate    string     `json:"release_date,omitempty" yaml:"release_date,omitempty"`
	Year           string     `json:"year,omitempty" yaml:"year,omitempty"`
	Duration       string     `json:"duration,omitempty" yaml:"duration,omitempty"`
	PosterURL      string     `json:"poster_url,omitempty" yaml:"poster_url,omitempty"`
	Summary        string     `json:"summary,omitempty" yaml:"summary,omitempty"`
	StaffCredits   string     `json:"staff,omitempty" yaml:"staff,omitempty"`
	RatingDouban   Rating     `json:"rating_douban" yaml:"rating_douban"`
	RatingIMDb     Rating     `json:"rating_imdb" yaml:"rating_imdb"`
	RatingBangumi  Rating     `json:"rating_bangumi" yaml:"rating_bangumi"`
	Collected      bool       `json:"collected" yaml:"collected"`
}

// RecordKey is the identity of a record.
type RecordKey struct {
	SourceType SourceType
	SourceID   string
}

func (k RecordKey) String() string {
	return string(k.SourceType) + ":" + k.SourceID
}

func (r Record) Key() RecordKey {
	return RecordKey{SourceType: r.SourceType, SourceID: r.SourceID}
}

// Equal compares identity only.
func (r Record) Equal(o Record) bool {
	return r.Key() == o.Key()
}

// WithCollected returns a copy with the collected flag set.
func (r Record) WithCollected(collected bool) Record {
	r.Collected = collected
	return r
}

// Title returns the localized title, falling back to the original one.
func (r Record) Title() string {
	if r.TitleLocalized != "" {
		return r.TitleLocalized
	}
	return r.TitleOriginal
}

// RecordBuilder assembles a Record. Setters ignore blank values so a fallback
// selector never clobbers a value found earlier.
type RecordBuilder struct {
	rec     Record
	baseURL string
	yearSet bool
}

func NewRecordBuilder(sourceType SourceType, sourceID string) *RecordBuilder {
	return &RecordBuilder{
		rec: Record{
			SourceType:    sourceType,
			SourceID:      strings.TrimSpace(sourceID),
			RatingDouban:  NoRating(),
			RatingIMDb:    NoRating(),
			RatingBangumi: NoRating(),
		},
	}
}

// From seeds a builder with an existing record, used by detail enrichment.
func From(r Record) *RecordBuilder {
	return &RecordBuilder{rec: r, yearSet: r.Year != ""}
}

// BaseURL sets the URL relative poster paths resolve against.
func (b *RecordBuilder) BaseURL(u string) *RecordBuilder {
	b.baseURL = u
	return b
}

func (b *RecordBuilder) SourceURL(u string) *RecordBuilder {
	if u = strings.TrimSpace(u); u != "" {
		b.rec.SourceURL = u
	}
	return b
}

func (b *RecordBuilder) MediaType(m MediaType) *RecordBuilder {
	if m != "" {
		b.rec.MediaType = m
	}
	return b
}

func (b *RecordBuilder) TitleLocalized(s string) *RecordBuilder {
	if s = strings.TrimSpace(s); s != "" {
		b.rec.TitleLocalized = s
	}
	return b
}

func (b *RecordBuilder) TitleOriginal(s string) *RecordBuilder {
	if s = strings.TrimSpace(s); s != "" {
		b.rec.TitleOriginal = s
	}
	return b
}

func (b *RecordBuilder) ReleaseDate(s string) *RecordBuilder {
	if s = strings.TrimSpace(s); s != "" {
		b.rec.ReleaseDate = s
	}
	return b
}

// Year overrides the year derived from the release date.
func (b *RecordBuilder) Year(s string) *RecordBuilder {
	if y := ExtractYear(s); y != "" {
		b.rec.Year = y
		b.yearSet = true
	}
	return b
}

func (b *RecordBuilder) Duration(s string) *RecordBuilder {
	if s = strings.TrimSpace(s); s != "" {
		b.rec.Duration = s
	}
	return b
}

func (b *RecordBuilder) Poster(raw string) *RecordBuilder {
	if raw = strings.TrimSpace(raw); raw != "" {
		b.rec.PosterURL = raw
	}
	return b
}

func (b *RecordBuilder) Summary(s string) *RecordBuilder {
	if s = strings.TrimSpace(s); s != "" {
		b.rec.Summary = s
	}
	return b
}

func (b *RecordBuilder) Staff(s string) *RecordBuilder {
	if s = strings.TrimSpace(s); s != "" {
		b.rec.StaffCredits = s
	}
	return b
}

func (b *RecordBuilder) RatingDouban(r Rating) *RecordBuilder {
	if r.Present() || r.Raw != "" {
		b.rec.RatingDouban = r
	}
	return b
}

func (b *RecordBuilder) RatingIMDb(r Rating) *RecordBuilder {
	if r.Present() || r.Raw != "" {
		b.rec.RatingIMDb = r
	}
	return b
}

func (b *RecordBuilder) RatingBangumi(r Rating) *RecordBuilder {
	if r.Present() || r.Raw != "" {
		b.rec.RatingBangumi = r
	}
	return b
}

// Build validates the record and finalizes derived fields.
func (b *RecordBuilder) Build() (Record, error) {
	r := b.rec
	if !r.SourceType.Valid() {
		return Record{}, NewUserInputError("source_type", "unknown source "+string(r.SourceType))
	}
	if r.SourceID == "" {
		return Record{}, NewUserInputError("source_id", "required")
	}
	if !r.MediaType.Valid() {
		return Record{}, NewUserInputError("media_type", "unknown media type "+string(r.MediaType))
	}
	if !b.yearSet {
		r.Year = ExtractYear(r.ReleaseDate)
	}
	r.PosterURL = AbsoluteURL(r.PosterURL, b.baseURL)
	return r, nil
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// ExtractYear returns the first run of four digits in s.
func ExtractYear(s string) string {
	return yearPattern.FindString(s)
}

// AbsoluteURL rewrites protocol-relative and relative URLs to absolute ones.
func AbsoluteURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	}

	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(raw, "/")
	}
	return b.ResolveReference(ref).String()
}
