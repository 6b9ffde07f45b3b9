package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationConfirmedMessage_WireFormat(t *testing.T) {
	msg := RegistrationConfirmedMessage{
		RegistrationID: "reg-1",
		EventID:        "evt-1",
		UserID:         "user-1",
		Attendees:      2,
		TransactionID:  "tx-1",
		Amount:         5000,
		ConfirmedAt:    time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"registration_id": "reg-1",
		"event_id": "evt-1",
		"user_id": "user-1",
		"attendees": 2,
		"transaction_id": "tx-1",
		"amount": 5000,
		"confirmed_at": "2026-10-01T12:00:00Z"
	}`, string(body))

	// The registration status shares the name prefix but stays a plain status value.
	assert.Equal(t, RegistrationStatus("confirmed"), RegistrationConfirmed)
}
