package models

import (
	"time"
)

// TimestampLayout is the on-disk creation timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

// Registration is one accepted competition submission. Once stored it is never mutated.
type Registration struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"timestamp"`
	Name         string    `json:"name"`
	StudentEmail string    `json:"studentEmail"`
	ParentEmail  string    `json:"parentEmail"`
	School       string    `json:"school"`
	Grade        int       `json:"grade"`
	Age          int       `json:"age"`
	Country      string    `json:"country"`
	Experience   string    `json:"experience,omitempty"`
	Motivation   string    `json:"motivation,omitempty"`
}

// Timestamp returns CreatedAt in TimestampLayout.
func (r *Registration) Timestamp() string {
	return r.CreatedAt.Format(TimestampLayout)
}

// Stats summarises the registration log.
type Stats struct {
	TotalRegistrations int            `json:"totalRegistrations"`
	Countries          []string       `json:"countries"`
	Grades             map[string]int `json:"grades"`
	LastUpdated        string         `json:"lastUpdated"`
}
