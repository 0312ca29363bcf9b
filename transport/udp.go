package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// Construction errors for malformed endpoints or unusable sockets. These
// surface at transport setup only; a session without a transport keeps
// working locally.
var (
	ErrParseInputSocket   = errors.New("failed to parse input socket")
	ErrParseOutputAddress = errors.New("failed to parse output address")
	ErrConnectSocket      = errors.New("failed to connect to socket")
)

// datagramHandler processes one received datagram. It runs on the
// socket's receive goroutine.
type datagramHandler func(data []byte, addr net.Addr)

// udpSocket owns one bidirectional UDP socket and its receive loop.
type udpSocket struct {
	conn    net.PacketConn
	handler datagramHandler
	ctx     context.Context
	cancel  context.CancelFunc
}

// newUDPSocket binds the given address and starts the receive loop. The
// handler runs for every datagram until Close.
func newUDPSocket(bind string, handler datagramHandler) (*udpSocket, error) {
	if _, err := net.ResolveUDPAddr("udp", bind); err != nil {
		return nil, ErrParseInputSocket
	}

	conn, err := net.ListenPacket("udp", bind)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "newUDPSocket",
			"bind":     bind,
			"error":    err.Error(),
		}).Error("Failed to bind UDP socket")
		return nil, ErrConnectSocket
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &udpSocket{
		conn:    conn,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}

	go s.receiveLoop()

	logrus.WithFields(logrus.Fields{
		"function":   "newUDPSocket",
		"local_addr": conn.LocalAddr().String(),
	}).Info("UDP socket listening")

	return s, nil
}

// Send writes one datagram to the given address.
func (s *udpSocket) Send(data []byte, addr net.Addr) error {
	_, err := s.conn.WriteTo(data, addr)
	return err
}

// LocalAddr returns the bound local address.
func (s *udpSocket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close stops the receive loop and releases the socket.
func (s *udpSocket) Close() error {
	s.cancel()
	return s.conn.Close()
}

// receiveLoop reads datagrams until the socket is closed. Short read
// deadlines keep cancellation responsive without a blocking read.
func (s *udpSocket) receiveLoop() {
	buffer := make([]byte, 64*1024)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, addr, err := s.conn.ReadFrom(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if s.ctx.Err() != nil {
				return
			}
			logrus.WithFields(logrus.Fields{
				"function": "udpSocket.receiveLoop",
				"error":    err.Error(),
			}).Warn("UDP read failed")
			continue
		}

		data := make([]byte, n)
		copy(data, buffer[:n])
		s.handler(data, addr)
	}
}

// resolveTarget parses a remote endpoint string for outbound datagrams.
func resolveTarget(target string) (net.Addr, error) {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, ErrParseOutputAddress
	}
	return addr, nil
}
