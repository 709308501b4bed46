//go:build unix

package dualbind

import (
	"context"
	"net"
	"testing"

	"sockprobe/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *logging.Logger {
	return logging.NewWithWriter("DualBind", nil)
}

func TestBothWithReuseShareThePort(t *testing.T) {
	t.Parallel()

	res, err := Run(context.Background(), "127.0.0.1:0", true, true, quiet())
	require.NoError(t, err)

	assert.True(t, res.Shared())
	assert.Equal(t, res.First.Addr, res.Second.Addr)
}

func TestSecondWithoutReuseIsAddrInUse(t *testing.T) {
	t.Parallel()

	res, err := Run(context.Background(), "127.0.0.1:0", true, false, quiet())
	require.NoError(t, err)

	assert.True(t, res.First.OK())
	assert.False(t, res.Second.OK())
	assert.True(t, res.Second.AddrInUse())
	assert.False(t, res.Shared())
}

func TestFirstWithoutReuseBlocksSecond(t *testing.T) {
	t.Parallel()

	res, err := Run(context.Background(), "127.0.0.1:0", false, true, quiet())
	require.NoError(t, err)

	assert.True(t, res.Second.AddrInUse())
}

func TestFirstBindFailureIsReturned(t *testing.T) {
	t.Parallel()

	holder, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer holder.Close()

	res, err := Run(context.Background(), holder.LocalAddr().String(), true, true, quiet())

	assert.Error(t, err)
	assert.True(t, res.First.AddrInUse())
	assert.False(t, res.Second.OK())
}
