package bootstrap

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartEmbeddedNATSServer(t *testing.T) {
	s, err := StartEmbeddedNATSServer(log.New(io.Discard))
	require.NoError(t, err)
	defer s.Shutdown()

	conn, err := nats.Connect(s.ClientURL())
	require.NoError(t, err)
	defer conn.Close()

	assert.True(t, conn.IsConnected())
}
