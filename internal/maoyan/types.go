package maoyan

type movie struct {
	ID     int64   `json:"id"`
	Name   string  `json:"nm"`
	EnName string  `json:"enm"`
	Score  float64 `json:"sc"`
	Img    string  `json:"img"`
	Star   string  `json:"star"`
	Dir    string  `json:"dir"`
	Dur    int     `json:"dur"`
	Rt     string  `json:"rt"`
	Cat    string  `json:"cat"`
	Dra    string  `json:"dra"`
}

type onInfoResponse struct {
	MovieList *[]movie `json:"movieList"`
	Total     int      `json:"total"`
}

type comingResponse struct {
	Coming *[]movie `json:"coming"`
}

type detailResponse struct {
	DetailMovie *movie `json:"detailMovie"`
}
