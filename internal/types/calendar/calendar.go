package calendar

type CalendarDay struct {
	Date     string `json:"date"` // YYYY-MM-DD in the user's timezone
	HasEntry bool   `json:"has_entry"`
	IsToday  bool   `json:"is_today"`
}

type CalendarResponse struct {
	Year  int            `json:"year"`
	Month int            `json:"month"`
	Days  []*CalendarDay `json:"days"`
}
