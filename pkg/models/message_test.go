package models

import (
	"testing"
	"time"
)

func TestMessagePriority_Valid(t *testing.T) {
	valid := []MessagePriority{PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical}
	for _, p := range valid {
		if !p.Valid() {
			t.Errorf("Priority %q should be valid", p)
		}
	}

	invalid := []MessagePriority{"", "urgent", "CRITICAL"}
	for _, p := range invalid {
		if p.Valid() {
			t.Errorf("Priority %q should be invalid", p)
		}
	}
}

func TestMessagePriority_TTL(t *testing.T) {
	tests := []struct {
		priority MessagePriority
		want     time.Duration
	}{
		{PriorityCritical, 5 * time.Minute},
		{PriorityHigh, 15 * time.Minute},
		{PriorityNormal, 60 * time.Minute},
		{PriorityLow, 60 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			if got := tt.priority.TTL(); got != tt.want {
				t.Errorf("TTL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessageStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from MessageStatus
		to   MessageStatus
		want bool
	}{
		{StatusPending, StatusDelivered, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusExpired, true},
		{StatusDelivered, StatusAcknowledged, true},
		{StatusDelivered, StatusExpired, true},
		// No regressions.
		{StatusDelivered, StatusPending, false},
		{StatusAcknowledged, StatusPending, false},
		{StatusAcknowledged, StatusDelivered, false},
		{StatusExpired, StatusDelivered, false},
		{StatusFailed, StatusDelivered, false},
		// No skipping straight to acknowledged.
		{StatusPending, StatusAcknowledged, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestMessage_Expired(t *testing.T) {
	now := time.Now()

	m := &Message{ExpiresAt: now.Add(-time.Second)}
	if !m.Expired(now) {
		t.Error("message past expiry should be expired")
	}

	m = &Message{ExpiresAt: now.Add(time.Minute)}
	if m.Expired(now) {
		t.Error("message before expiry should not be expired")
	}

	// Zero expiry means no TTL was assigned yet.
	m = &Message{}
	if m.Expired(now) {
		t.Error("message with zero expiry should not be expired")
	}
}
