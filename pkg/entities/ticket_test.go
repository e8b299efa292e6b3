package entities

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"support", "support"},
		{"Account Help", "account-help"},
		{"  Billing / Payments  ", "billing-payments"},
		{"TV!!", "tv"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, Slug(tt.in))
		})
	}
}

func TestTicket_Name(t *testing.T) {
	tk := &Ticket{Category: "plex", Type: "Account Help", TicketID: 12345}
	require.Equal(t, "plex-account-help-12345", tk.Name())
}

func TestTicket_Status(t *testing.T) {
	tk := &Ticket{}
	require.Equal(t, StatusOpen, tk.Status())

	tk.Claimed = true
	require.Equal(t, StatusClaimed, tk.Status())

	tk.Locked = true
	require.Equal(t, StatusLocked, tk.Status())

	tk.Closed = true
	require.Equal(t, StatusClosed, tk.Status())
}
