package models

import "time"

// Setting is a key/value pair persisted in the review store. Settings
// saved through the API override file and environment configuration on
// the next restart.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
