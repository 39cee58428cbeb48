package usage

import "time"

// Usage is a snapshot of how many pipeline runs a user has consumed
// in the current quota period.
type Usage struct {
	Plan     string    `json:"plan"`
	Limit    int       `json:"limit"`
	Used     int       `json:"used"`
	ResetsAt time.Time `json:"resetsAt"`
}
