package models

import (
	"fmt"
	"strings"
	"time"
)

// User is a learner known to the academy bot.
type User struct {
	ID         int64
	FirstName  string
	LastName   string
	Username   string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

func (u *User) DisplayName() string {
	var parts []string
	if u.FirstName != "" {
		parts = append(parts, u.FirstName)
	}
	if u.LastName != "" {
		parts = append(parts, u.LastName)
	}
	if u.Username != "" {
		parts = append(parts, fmt.Sprintf("@%s", u.Username))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("learner %d", u.ID)
	}
	return strings.Join(parts, " ")
}
