package mock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/walletlink/internal/adapter"
	"github.com/mrz1836/walletlink/internal/adapter/mock"
)

var errRejected = errors.New("rejected by user")

func TestAdapter_ConnectDisconnect(t *testing.T) {
	t.Parallel()

	a := mock.New("https://provider.example", "https://rpc.example", mock.DefaultIdentity)
	var connects, disconnects int
	a.On(adapter.EventConnect, func() { connects++ })
	a.On(adapter.EventDisconnect, func() { disconnects++ })

	assert.Empty(t, a.Identity(), "identity is hidden until connected")

	require.NoError(t, a.Connect(context.Background()))
	assert.True(t, a.Connected())
	assert.Equal(t, mock.DefaultIdentity, a.Identity())
	assert.Equal(t, 1, connects)

	require.NoError(t, a.Disconnect(context.Background()))
	require.NoError(t, a.Disconnect(context.Background()))
	assert.False(t, a.Connected())
	assert.Equal(t, 1, disconnects, "disconnect only emits when connected")
	assert.Equal(t, 1, a.ConnectCalls())
	assert.Equal(t, 2, a.DisconnectCalls())
}

func TestAdapter_ScriptedErrors(t *testing.T) {
	t.Parallel()

	a := mock.New("", "", "id")
	a.SetConnectError(errRejected)
	require.ErrorIs(t, a.Connect(context.Background()), errRejected)
	assert.False(t, a.Connected())

	a.SetConnectError(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, a.Connect(ctx), context.Canceled)

	require.NoError(t, a.Connect(context.Background()))
	a.SetDisconnectError(errRejected)
	require.ErrorIs(t, a.Disconnect(context.Background()), errRejected)
	assert.True(t, a.Connected())
}

func TestAdapter_Simulate(t *testing.T) {
	t.Parallel()

	a := mock.New("", "", "id")
	var events []string
	a.On(adapter.EventConnect, func() { events = append(events, "connect") })
	a.On(adapter.EventDisconnect, func() { events = append(events, "disconnect") })

	a.SimulateConnect()
	assert.True(t, a.Connected())
	a.SimulateDisconnect()
	assert.False(t, a.Connected())

	assert.Equal(t, []string{"connect", "disconnect"}, events)
	assert.Zero(t, a.ConnectCalls())
}

func TestConstructor(t *testing.T) {
	t.Parallel()

	built, err := mock.Constructor("id")("https://provider.example", "https://rpc.example")
	require.NoError(t, err)

	m, ok := built.(*mock.Adapter)
	require.True(t, ok)
	assert.Equal(t, "https://provider.example", m.ProviderURL())
	assert.Equal(t, "https://rpc.example", m.Endpoint())
}
