package domain

import "strings"

// Category is a browsing category. ALL is derived from MOVIES and TV.
type Category uint8

const (
	CategoryAll Category = iota
	CategoryMovies
	CategoryTV
)

// Categories lists every category, ALL first.
func Categories() []Category {
	return []Category{CategoryAll, CategoryMovies, CategoryTV}
}

func (c Category) Valid() bool {
	return c <= CategoryTV
}

// Derived reports whether the category is assembled from other categories.
func (c Category) Derived() bool {
	return c == CategoryAll
}

// MediaType is the media type a base category browses.
func (c Category) MediaType() MediaType {
	switch c {
	case CategoryMovies:
		return MediaMovie
	case CategoryTV:
		return MediaTV
	}
	return ""
}

func (c Category) String() string {
	switch c {
	case CategoryAll:
		return "all"
	case CategoryMovies:
		return "movies"
	case CategoryTV:
		return "tv"
	}
	return "unknown"
}

func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "":
		return CategoryAll, nil
	case "movies", "movie":
		return CategoryMovies, nil
	case "tv":
		return CategoryTV, nil
	}
	return 0, NewUserInputError("category", "must be one of all, movies, tv")
}
