/*
Copyright (c) AES67 RX SDK contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ordinaryclock

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/soundondigital/aes67rx/ptp/protocol"
)

// UDPTransport joins the IEEE 1588 default delay-request profile's
// multicast groups on event port 319 and general port 320 (spec §6.1) and
// implements the Engine's Transport interface over the event socket
// (Delay-Req is an event message).
//
// This is a software-timestamping transport: the receive timestamp is
// time.Now() at the point the datagram is read, not a hardware PHC
// timestamp. No corpus example exercises CGO/hardware PTP timestamping
// from pure Go without platform-specific syscalls, and this receiver has
// no hardware-timestamp requirement of its own (see DESIGN.md).
type UDPTransport struct {
	eventConn   net.PacketConn
	generalConn net.PacketConn
	group       *net.UDPAddr

	log *log.Entry
}

// reusePortListenConfig sets SO_REUSEADDR (SO_REUSEPORT is not set) on the
// listening socket before bind, matching
// facebook-time/ptp/ptp4u/server/worker.go's rationale: several PTP
// listeners (one per process/interface) can then share the same multicast
// port on a single host.
var reusePortListenConfig = net.ListenConfig{
	Control: func(_, _ string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		})
		if err != nil {
			return err
		}
		return sockErr
	},
}

// NewUDPTransport opens and joins both PTP multicast sockets on iface.
func NewUDPTransport(iface *net.Interface) (*UDPTransport, error) {
	eventAddr := &net.UDPAddr{IP: protocol.MulticastIPv4, Port: protocol.PortEvent}
	generalAddr := &net.UDPAddr{IP: protocol.MulticastIPv4, Port: protocol.PortGeneral}

	eventConn, err := reusePortListenConfig.ListenPacket(context.Background(), "udp4", eventAddr.String())
	if err != nil {
		return nil, fmt.Errorf("ordinaryclock: listen event port: %w", err)
	}
	if err := ipv4.NewPacketConn(eventConn).JoinGroup(iface, eventAddr); err != nil {
		eventConn.Close()
		return nil, fmt.Errorf("ordinaryclock: join event group on %s: %w", iface.Name, err)
	}

	generalConn, err := reusePortListenConfig.ListenPacket(context.Background(), "udp4", generalAddr.String())
	if err != nil {
		eventConn.Close()
		return nil, fmt.Errorf("ordinaryclock: listen general port: %w", err)
	}
	if err := ipv4.NewPacketConn(generalConn).JoinGroup(iface, generalAddr); err != nil {
		eventConn.Close()
		generalConn.Close()
		return nil, fmt.Errorf("ordinaryclock: join general group on %s: %w", iface.Name, err)
	}

	return &UDPTransport{
		eventConn:   eventConn,
		generalConn: generalConn,
		group:       eventAddr,
		log:         log.WithField("component", "ordinaryclock.UDPTransport"),
	}, nil
}

// Send implements Engine's Transport: Delay-Req is an event message.
func (t *UDPTransport) Send(b []byte, dst net.Addr) error {
	_, err := t.eventConn.WriteTo(b, dst)
	return err
}

// LocalAddr implements Engine's Transport.
func (t *UDPTransport) LocalAddr() net.Addr { return t.eventConn.LocalAddr() }

// Close closes both sockets.
func (t *UDPTransport) Close() error {
	err1 := t.eventConn.Close()
	err2 := t.generalConn.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Run reads both sockets until ctx is canceled, decoding each datagram and
// dispatching it to port/engine by message type. It is meant to run on its
// own goroutine, modeling spec §5's IO reactor thread for PTP.
func (t *UDPTransport) Run(ctx context.Context, port *Port, engine *Engine) {
	go t.readLoop(ctx, t.eventConn, port, engine)
	t.readLoop(ctx, t.generalConn, port, engine)
}

func (t *UDPTransport) readLoop(ctx context.Context, conn net.PacketConn, port *Port, engine *Engine) {
	buf := make([]byte, 1500)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			t.log.WithError(err).Warn("ordinaryclock: read failed")
			continue
		}
		hostNow := time.Now()
		hostNowNS := hostNow.UnixNano()

		pkt, err := protocol.DecodePacket(buf[:n])
		if err != nil {
			t.log.WithError(err).Debug("ordinaryclock: decode failed")
			continue
		}

		switch m := pkt.(type) {
		case *protocol.Announce:
			port.HandleAnnounce(*m, hostNow)
			port.mu.Lock()
			isParent := port.fromParent(m.Header.SourcePortIdentity)
			port.mu.Unlock()
			if isParent {
				engine.SetMaster(src)
			}
		case *protocol.SyncDelayReq:
			if m.MessageType() == protocol.MessageSync {
				port.HandleSync(*m, hostNowNS)
				engine.NoteSyncReceived(hostNow)
			}
		case *protocol.FollowUp:
			if err := port.HandleFollowUp(*m, hostNowNS); err != nil {
				t.log.WithError(err).Debug("ordinaryclock: follow-up rejected")
			}
		case *protocol.DelayResp:
			if err := port.HandleDelayResp(*m, hostNowNS); err != nil {
				t.log.WithError(err).Debug("ordinaryclock: delay-resp rejected")
			}
		}
	}
}
