package risk

// Stats are the headline counters shown above the heatmap.
type Stats struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Users    int `json:"users"`
}

// Summarize counts critical and high events and distinct users.
func Summarize(events []Event) Stats {
	users := make(map[string]struct{})
	s := Stats{Total: len(events)}
	for _, e := range events {
		switch e.Level {
		case LevelCritical:
			s.Critical++
		case LevelHigh:
			s.High++
		}
		users[e.User] = struct{}{}
	}
	s.Users = len(users)
	return s
}
