package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_EqualUsesIdentityOnly(t *testing.T) {
	a, err := NewRecordBuilder(SourceDouban, "1292052").
		MediaType(MediaMovie).
		TitleLocalized("肖申克的救赎").
		RatingDouban(NewRating(9.7)).
		Build()
	require.NoError(t, err)

	refreshed, err := NewRecordBuilder(SourceDouban, "1292052").
		MediaType(MediaTV).
		TitleLocalized("The Shawshank Redemption").
		Summary("changed").
		Build()
	require.NoError(t, err)

	otherID, err := NewRecordBuilder(SourceDouban, "1291546").MediaType(MediaMovie).TitleLocalized("肖申克的救赎").Build()
	require.NoError(t, err)

	otherSource, err := NewRecordBuilder(SourceTMDb, "1292052").MediaType(MediaMovie).Build()
	require.NoError(t, err)

	assert.True(t, a.Equal(refreshed))
	assert.True(t, a.WithCollected(true).Equal(a))
	assert.False(t, a.Equal(otherID))
	assert.False(t, a.Equal(otherSource))
	assert.Equal(t, RecordKey{SourceType: SourceDouban, SourceID: "1292052"}, a.Key())
}

func TestRecordBuilder_Defaults(t *testing.T) {
	r, err := NewRecordBuilder(SourceBangumi, " 253 ").MediaType(MediaAnime).Build()
	require.NoError(t, err)

	assert.Equal(t, "253", r.SourceID)
	assert.Equal(t, RatingAbsent, r.RatingDouban.Score)
	assert.Equal(t, RatingAbsent, r.RatingIMDb.Score)
	assert.Equal(t, RatingAbsent, r.RatingBangumi.Score)
	assert.Empty(t, r.Year)
	assert.Empty(t, r.PosterURL)
	assert.False(t, r.Collected)
}

func TestRecordBuilder_ZeroRatingIsPresent(t *testing.T) {
	r, err := NewRecordBuilder(SourceTMDb, "1").MediaType(MediaMovie).RatingIMDb(NewRating(0)).Build()
	require.NoError(t, err)
	assert.True(t, r.RatingIMDb.Present())
	assert.Equal(t, 0.0, r.RatingIMDb.Score)
}

func TestRecordBuilder_Validation(t *testing.T) {
	_, err := NewRecordBuilder(SourceDouban, "").MediaType(MediaMovie).Build()
	assert.True(t, IsUserInput(err))

	_, err = NewRecordBuilder(SourceDouban, "1").Build()
	assert.True(t, IsUserInput(err))

	_, err = NewRecordBuilder(SourceType("imdb"), "1").MediaType(MediaMovie).Build()
	assert.True(t, IsUserInput(err))
}

func TestRecordBuilder_DerivesYear(t *testing.T) {
	r, err := NewRecordBuilder(SourceDouban, "1").MediaType(MediaMovie).ReleaseDate("1994-09-10(多伦多电影节)").Build()
	require.NoError(t, err)
	assert.Equal(t, "1994", r.Year)

	r, err = NewRecordBuilder(SourceDouban, "1").MediaType(MediaMovie).ReleaseDate("2001-07-20").Year("2002").Build()
	require.NoError(t, err)
	assert.Equal(t, "2002", r.Year)
}

func TestRecordBuilder_SettersIgnoreBlank(t *testing.T) {
	r, err := NewRecordBuilder(SourceDouban, "1").
		MediaType(MediaMovie).
		TitleLocalized("千与千寻").
		TitleLocalized("  ").
		RatingDouban(NewRating(9.4)).
		RatingDouban(NoRating()).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "千与千寻", r.TitleLocalized)
	assert.Equal(t, 9.4, r.RatingDouban.Score)
}

func TestRecordBuilder_NormalizesPoster(t *testing.T) {
	r, err := NewRecordBuilder(SourceBangumi, "1").
		BaseURL("https://bgm.tv").
		MediaType(MediaAnime).
		Poster("//lain.bgm.tv/pic/cover/c/12/34.jpg").
		Build()
	require.NoError(t, err)
	assert.Equal(t, "https://lain.bgm.tv/pic/cover/c/12/34.jpg", r.PosterURL)

	r, err = NewRecordBuilder(SourceBangumi, "1").
		BaseURL("https://bgm.tv").
		MediaType(MediaAnime).
		Poster("/img/no_icon_subject.png").
		Build()
	require.NoError(t, err)
	assert.Equal(t, "https://bgm.tv/img/no_icon_subject.png", r.PosterURL)
}

func TestFrom_KeepsFields(t *testing.T) {
	base, err := NewRecordBuilder(SourceDouban, "1").MediaType(MediaMovie).TitleLocalized("a").Year("1999").Build()
	require.NoError(t, err)

	enriched, err := From(base).Summary("s").Build()
	require.NoError(t, err)
	assert.Equal(t, "a", enriched.TitleLocalized)
	assert.Equal(t, "1999", enriched.Year)
	assert.Equal(t, "s", enriched.Summary)
}

func TestAbsoluteURL(t *testing.T) {
	tests := []struct {
		raw, base, want string
	}{
		{"", "https://bgm.tv", ""},
		{"https://img9.doubanio.com/p.jpg", "https://movie.douban.com", "https://img9.doubanio.com/p.jpg"},
		{"http://example.com/p.jpg", "", "http://example.com/p.jpg"},
		{"//lain.bgm.tv/p.jpg", "", "https://lain.bgm.tv/p.jpg"},
		{"/pic/p.jpg", "https://bgm.tv", "https://bgm.tv/pic/p.jpg"},
		{"pic/p.jpg", "https://bgm.tv/subject/", "https://bgm.tv/subject/pic/p.jpg"},
		{"/pic/p.jpg", "", "/pic/p.jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AbsoluteURL(tt.raw, tt.base), "raw=%q base=%q", tt.raw, tt.base)
	}
}

func TestExtractYear(t *testing.T) {
	assert.Equal(t, "2010", ExtractYear("2010-07-16"))
	assert.Equal(t, "2023", ExtractYear("2023年4月9日"))
	assert.Equal(t, "1994", ExtractYear("美国 / 1994 / 剧情"))
	assert.Equal(t, "", ExtractYear("未知"))
	assert.Equal(t, "", ExtractYear("123"))
}
