package watch_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/walletlink/internal/adapter"
	"github.com/mrz1836/walletlink/internal/adapter/watch"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

const (
	lowerAddress    = "0x52908400098527886e0f7030069857d2e4169ee7"
	checksumAddress = "0x52908400098527886E0F7030069857D2E4169EE7"
)

var errRPC = errors.New("rpc unavailable")

type fakePinger struct {
	head   uint64
	err    error
	closed atomic.Bool
}

func (f *fakePinger) BlockNumber(context.Context) (uint64, error) { return f.head, f.err }
func (f *fakePinger) Close()                                     { f.closed.Store(true) }

func dialTo(p *fakePinger) watch.DialFunc {
	return func(context.Context, string) (watch.Pinger, error) { return p, nil }
}

func TestConstructor_ValidatesAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{"checksummed", checksumAddress, false},
		{"lowercase", lowerAddress, false},
		{"empty", "", true},
		{"short", "0x1234", true},
		{"not hex", "0xZZ908400098527886E0F7030069857D2E4169EE7", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := watch.Constructor(tc.address, nil)("https://watch.walletlink.dev", "")
			if tc.wantErr {
				require.ErrorIs(t, err, linkerr.ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAdapter_Lifecycle(t *testing.T) {
	t.Parallel()

	pinger := &fakePinger{head: 19_000_000}
	a, err := watch.Constructor(lowerAddress, dialTo(pinger))("https://watch.walletlink.dev", "https://rpc.test")
	require.NoError(t, err)

	var events []adapter.EventName
	a.On(adapter.EventConnect, func() { events = append(events, adapter.EventConnect) })
	a.On(adapter.EventDisconnect, func() { events = append(events, adapter.EventDisconnect) })

	assert.Empty(t, a.Identity())
	require.NoError(t, a.Connect(context.Background()))
	assert.True(t, a.Connected())
	assert.Equal(t, checksumAddress, a.Identity())
	assert.Equal(t, uint64(19_000_000), a.(*watch.Adapter).Head())

	require.NoError(t, a.Disconnect(context.Background()))
	assert.False(t, a.Connected())
	assert.Empty(t, a.Identity())
	assert.True(t, pinger.closed.Load())

	require.NoError(t, a.Disconnect(context.Background()))
	assert.Equal(t, []adapter.EventName{adapter.EventConnect, adapter.EventDisconnect}, events)
}

func TestAdapter_NoEndpoint(t *testing.T) {
	t.Parallel()

	a := watch.New(checksumAddress, "", func(context.Context, string) (watch.Pinger, error) {
		t.Fatal("dial must not be called without an endpoint")
		return nil, nil
	})
	require.NoError(t, a.Connect(context.Background()))
	assert.Equal(t, checksumAddress, a.Identity())
}

func TestAdapter_EndpointErrors(t *testing.T) {
	t.Parallel()

	failDial := watch.New(checksumAddress, "https://rpc.test", func(context.Context, string) (watch.Pinger, error) {
		return nil, errRPC
	})
	require.ErrorIs(t, failDial.Connect(context.Background()), linkerr.ErrNetworkError)
	assert.False(t, failDial.Connected())

	pinger := &fakePinger{err: errRPC}
	failHead := watch.New(checksumAddress, "https://rpc.test", dialTo(pinger))
	require.ErrorIs(t, failHead.Connect(context.Background()), linkerr.ErrNetworkError)
	assert.True(t, pinger.closed.Load())
	assert.False(t, failHead.Connected())
}
