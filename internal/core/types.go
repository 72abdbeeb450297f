package core

import (
	"strconv"
	"time"
)

// Identity is the principal id of an inbound event's sender.
type Identity int64

func (i Identity) String() string {
	return strconv.FormatInt(int64(i), 10)
}

// DisplayMeta is the sender metadata carried by an inbound event.
type DisplayMeta struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName returns the most human-friendly name available.
func (m DisplayMeta) DisplayName() string {
	switch {
	case m.Username != "":
		return "@" + m.Username
	case m.FirstName != "" && m.LastName != "":
		return m.FirstName + " " + m.LastName
	default:
		return m.FirstName
	}
}

// Profile is the persisted record of a known identity.
type Profile struct {
	Identity   Identity    `json:"identity"`
	Meta       DisplayMeta `json:"meta"`
	IsAdmin    bool        `json:"is_admin"`
	IsActive   bool        `json:"is_active"`
	CreatedAt  time.Time   `json:"created_at"`
	LastActive time.Time   `json:"last_active"`
}

// EventType distinguishes the two inbound event shapes.
type EventType string

const (
	EventTypeMessage  EventType = "message"
	EventTypeCallback EventType = "callback"
)

// Outcome is the result of a handled command.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// AuditEvent records one handled command.
type AuditEvent struct {
	Identity      Identity  `json:"identity"`
	Command       string    `json:"command"`
	EventType     EventType `json:"event_type"`
	Outcome       Outcome   `json:"outcome"`
	LatencyMS     int64     `json:"latency_ms"`
	Error         string    `json:"error,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// VPNClient is a WireGuard peer created through the bot.
type VPNClient struct {
	Name      string     `json:"name"`
	Owner     Identity   `json:"owner"`
	IPAddress string     `json:"ip_address,omitempty"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
