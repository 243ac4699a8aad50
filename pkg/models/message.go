package models

import "time"

// MessagePriority is the delivery priority of a bus message.
type MessagePriority string

const (
	// PriorityLow is for background notices that can wait.
	PriorityLow MessagePriority = "low"
	// PriorityNormal is the default priority.
	PriorityNormal MessagePriority = "normal"
	// PriorityHigh is for messages that should jump the normal queue.
	PriorityHigh MessagePriority = "high"
	// PriorityCritical is for messages that must be seen first.
	PriorityCritical MessagePriority = "critical"
)

// Valid returns true if the priority is a known value.
func (p MessagePriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// TTL returns the default time-to-live for messages of this priority.
func (p MessagePriority) TTL() time.Duration {
	switch p {
	case PriorityCritical:
		return 5 * time.Minute
	case PriorityHigh:
		return 15 * time.Minute
	default:
		return 60 * time.Minute
	}
}

// MessageStatus represents the lifecycle state of a bus message.
// Transitions are monotonic: pending -> delivered -> {acknowledged|expired},
// or pending -> failed. A status never regresses.
type MessageStatus string

const (
	// StatusPending indicates the message is queued and undelivered.
	StatusPending MessageStatus = "pending"
	// StatusDelivered indicates the target worker has received the message.
	StatusDelivered MessageStatus = "delivered"
	// StatusAcknowledged indicates the target worker confirmed the message.
	StatusAcknowledged MessageStatus = "acknowledged"
	// StatusFailed indicates delivery failed.
	StatusFailed MessageStatus = "failed"
	// StatusExpired indicates the message passed its expiry before delivery
	// or acknowledgment.
	StatusExpired MessageStatus = "expired"
)

// Valid returns true if the status is a known value.
func (s MessageStatus) Valid() bool {
	switch s {
	case StatusPending, StatusDelivered, StatusAcknowledged, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

// CanTransitionTo returns true if moving from s to next is a legal
// lifecycle transition.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusDelivered || next == StatusFailed || next == StatusExpired
	case StatusDelivered:
		return next == StatusAcknowledged || next == StatusExpired
	default:
		return false
	}
}

// Message is a directed notice between two workers carried by the bus.
type Message struct {
	// ID is the unique identifier for this message.
	ID string `json:"id"`
	// From is the sending worker's name.
	From string `json:"from"`
	// To is the target worker's name.
	To string `json:"to"`
	// Payload is the message text.
	Payload string `json:"payload"`
	// Priority determines queue ordering and the default TTL.
	Priority MessagePriority `json:"priority"`
	// Status is the current lifecycle state.
	Status MessageStatus `json:"status"`
	// CreatedAt is when the message was sent.
	CreatedAt time.Time `json:"created_at"`
	// ExpiresAt is when the message becomes undeliverable. If zero at send
	// time, it is derived from the priority's TTL.
	ExpiresAt time.Time `json:"expires_at"`
	// RequireAck indicates the sender expects an acknowledgment.
	RequireAck bool `json:"require_ack"`
	// RetryCount is the number of delivery attempts so far.
	RetryCount int `json:"retry_count"`
	// MaxRetries caps delivery attempts.
	MaxRetries int `json:"max_retries"`
	// Metadata carries free-form key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Expired returns true if the message is past its expiry at the given time.
func (m *Message) Expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt)
}
