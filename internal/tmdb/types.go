package tmdb

type searchResponse struct {
	Page         int       `json:"page"`
	Results      *[]result `json:"results"`
	TotalPages   int       `json:"total_pages"`
	TotalResults int       `json:"total_results"`
}

// result is shared by multi search, top rated lists and details.
// Movies fill Title/ReleaseDate, series fill Name/FirstAirDate.
type result struct {
	ID            int64    `json:"id"`
	MediaType     string   `json:"media_type"`
	Title         string   `json:"title"`
	OriginalTitle string   `json:"original_title"`
	ReleaseDate   string   `json:"release_date"`
	Name          string   `json:"name"`
	OriginalName  string   `json:"original_name"`
	FirstAirDate  string   `json:"first_air_date"`
	Overview      string   `json:"overview"`
	PosterPath    string   `json:"poster_path"`
	VoteAverage   *float64 `json:"vote_average"`
	VoteCount     int      `json:"vote_count"`
}

type details struct {
	result
	Runtime          int `json:"runtime"`
	NumberOfEpisodes int `json:"number_of_episodes"`
	Credits          struct {
		Cast []struct {
			Name  string `json:"name"`
			Order int    `json:"order"`
		} `json:"cast"`
		Crew []struct {
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
}
