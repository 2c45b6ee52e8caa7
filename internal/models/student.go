package models

import (
	"fmt"
	"strings"
	"time"
)

// Branches lists the accepted student branches.
var Branches = []string{"CSE", "ECE", "ME", "CE", "EEE", "IT"}

// Student is a student record owned by the authenticated user.
type Student struct {
	ID              int       `json:"id"`
	StudentID       string    `json:"student_id"`
	Name            string    `json:"name"`
	Branch          string    `json:"branch"`
	CreatedAt       time.Time `json:"created_at"`
	CreatorUsername string    `json:"creator_username,omitempty"`
}

// StudentInput is the payload for creating a student.
type StudentInput struct {
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
	Branch    string `json:"branch"`
}

// Validate checks required fields and lengths before the input is sent.
func (s StudentInput) Validate() error {
	switch {
	case strings.TrimSpace(s.Name) == "":
		return fmt.Errorf("name is required")
	case len(s.Name) > 50:
		return fmt.Errorf("name must be at most 50 characters")
	case strings.TrimSpace(s.StudentID) == "":
		return fmt.Errorf("student_id is required")
	case len(s.StudentID) > 10:
		return fmt.Errorf("student_id must be at most 10 characters")
	case !IsBranch(s.Branch):
		return fmt.Errorf("branch must be one of %s", strings.Join(Branches, ", "))
	}
	return nil
}

// IsBranch reports whether b is one of [Branches].
func IsBranch(b string) bool {
	for _, branch := range Branches {
		if b == branch {
			return true
		}
	}
	return false
}
