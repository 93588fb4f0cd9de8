package bangumi

type calendarDay struct {
	Weekday struct {
		ID int    `json:"id"`
		CN string `json:"cn"`
		EN string `json:"en"`
	} `json:"weekday"`
	Items []calendarItem `json:"items"`
}

type calendarItem struct {
	ID      int64  `json:"id"`
	URL     string `json:"url"`
	Name    string `json:"name"`
	NameCN  string `json:"name_cn"`
	AirDate string `json:"air_date"`
	Summary string `json:"summary"`
	Images  *struct {
		Large  string `json:"large"`
		Common string `json:"common"`
	} `json:"images"`
	Rating *struct {
		Score float64 `json:"score"`
		Total int     `json:"total"`
	} `json:"rating"`
}
