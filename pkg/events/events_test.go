package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := new(Recorder)
	var p Publisher = r

	require.NoError(t, p.Publish(context.Background(), &Event{Type: TicketCreated, TicketID: 10001}))
	require.NoError(t, p.Publish(context.Background(), &Event{Type: TicketClosed, TicketID: 10001}))
	require.Equal(t, []string{TicketCreated, TicketClosed}, r.Types())
	require.NoError(t, p.Close())
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	require.NoError(t, p.Publish(context.Background(), &Event{Type: TicketCreated}))
	require.NoError(t, p.Close())
}

func TestNewAMQPPublisher_RequiresExchange(t *testing.T) {
	_, err := NewAMQPPublisher(nil, "amqp://localhost", "")
	require.Error(t, err)
}
