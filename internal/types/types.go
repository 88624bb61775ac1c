package types

import (
	"time"
)

type User struct {
	Id          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	ConnectedAt time.Time `json:"connected_at,omitempty"`
}

type Room struct {
	Id      string   `json:"id"`
	Members []string `json:"members,omitempty"`
}
