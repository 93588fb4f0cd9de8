package domain

import "time"

// ScheduleDay holds the anime airing on one weekday.
type ScheduleDay struct {
	Weekday time.Weekday `json:"weekday" yaml:"weekday"`
	Label   string       `json:"label" yaml:"label"`
	Records []Record     `json:"records" yaml:"records"`
}

// WeeklySchedule is the airing calendar, Sunday first.
type WeeklySchedule struct {
	Days [7]ScheduleDay `json:"days" yaml:"days"`
}

// NewWeeklySchedule returns an empty schedule with every weekday labelled.
func NewWeeklySchedule() WeeklySchedule {
	var s WeeklySchedule
	for d := time.Sunday; d <= time.Saturday; d++ {
		s.Days[d] = ScheduleDay{Weekday: d, Label: weekdayLabels[d]}
	}
	return s
}

// Day returns the entry for a weekday.
func (s *WeeklySchedule) Day(d time.Weekday) *ScheduleDay {
	return &s.Days[d]
}

// Empty reports whether no weekday has any record.
func (s WeeklySchedule) Empty() bool {
	for _, d := range s.Days {
		if len(d.Records) > 0 {
			return false
		}
	}
	return true
}

var weekdayLabels = [7]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}
