package monitor

import "time"

type Status struct {
	PostgreSQL  bool      `json:"postgresql"`
	Redis       bool      `json:"redis"`
	PendingSize int       `json:"pending_size"`
	LastCheck   time.Time `json:"last_check"`
}
