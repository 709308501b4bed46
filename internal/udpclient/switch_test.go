package udpclient_test

import (
	"context"
	"testing"
	"time"

	"sockprobe/internal/logging"
	"sockprobe/internal/udpclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortSwitchRepliesFollowLatestPort(t *testing.T) {
	t.Parallel()

	addr := startEcho(t)

	res, err := udpclient.PortSwitch(context.Background(), addr.String(), []byte("Hello World"), 200*time.Millisecond, logging.NewWithWriter("PortSwitch", nil))
	require.NoError(t, err)

	require.Len(t, res.Hops, 3)
	assert.NotEqual(t, res.OldPort, res.NewPort)

	assert.Equal(t, udpclient.Hop{From: res.OldPort, RepliedTo: res.OldPort}, res.Hops[0])
	assert.Equal(t, udpclient.Hop{From: res.NewPort, RepliedTo: res.NewPort}, res.Hops[1])
	assert.Equal(t, udpclient.Hop{From: res.OldPort, RepliedTo: res.OldPort}, res.Hops[2])
}

func TestPortSwitchBadAddress(t *testing.T) {
	t.Parallel()

	_, err := udpclient.PortSwitch(context.Background(), "not an address", nil, time.Millisecond, nil)
	assert.Error(t, err)
}
