package udpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"sockprobe/internal/logging"
)

// Hop is one message sent from one of the two client sockets
type Hop struct {
	From      int // local port the message was sent from
	RepliedTo int // local port the reply arrived on, 0 if none
}

// SwitchResult records where each reply landed
type SwitchResult struct {
	OldPort int
	NewPort int
	Hops    []Hop
}

// PortSwitch sends message to server from an "old" client port, then from a
// "new" one, then once more from the old port as a late straggler. Both
// sockets are read after every send so a reply landing on the wrong port
// is visible.
func PortSwitch(ctx context.Context, server string, message []byte, timeout time.Duration, log *logging.Logger) (*SwitchResult, error) {
	if log == nil {
		log = logging.New("PortSwitch")
	}

	raddr, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", server, err)
	}

	local := &net.UDPAddr{}
	if raddr.IP.To4() != nil {
		local.IP = net.IPv4zero
	}

	oldConn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, err
	}
	defer oldConn.Close()

	newConn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, err
	}
	defer newConn.Close()

	res := &SwitchResult{
		OldPort: oldConn.LocalAddr().(*net.UDPAddr).Port,
		NewPort: newConn.LocalAddr().(*net.UDPAddr).Port,
	}
	log.Infof("old client port %d, new client port %d", res.OldPort, res.NewPort)

	for _, sender := range []*net.UDPConn{oldConn, newConn, oldConn} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		from := sender.LocalAddr().(*net.UDPAddr).Port
		if _, err := sender.WriteToUDP(message, raddr); err != nil {
			return nil, fmt.Errorf("failed to send from port %d: %w", from, err)
		}

		hop := Hop{From: from}
		for _, c := range []*net.UDPConn{sender, other(sender, oldConn, newConn)} {
			got, err := readOne(c, timeout)
			if err != nil {
				return nil, err
			}
			if got {
				hop.RepliedTo = c.LocalAddr().(*net.UDPAddr).Port
				break
			}
		}

		if hop.RepliedTo == 0 {
			log.Warnf("sent from %d, no reply", hop.From)
		} else {
			log.Infof("sent from %d, reply on %d", hop.From, hop.RepliedTo)
		}
		res.Hops = append(res.Hops, hop)
	}

	return res, nil
}

func other(c, a, b *net.UDPConn) *net.UDPConn {
	if c == a {
		return b
	}
	return a
}

// readOne reports whether a datagram arrived on c within timeout
func readOne(c *net.UDPConn, timeout time.Duration) (bool, error) {
	if err := c.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, err
	}
	buffer := make([]byte, 2048)
	if _, _, err := c.ReadFromUDP(buffer); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
