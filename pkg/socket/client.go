// SPDX-License-Identifier: GPL-3.0-or-later

package socket

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

// maxFrameSize caps the declared response length; anything larger is
// treated as a corrupted length prefix.
const maxFrameSize = 64 << 20

// Client is the interface that wraps the framed request/response operations
// of a daemon control socket.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Send(ctx context.Context, request []byte) error
	ReceiveFramed(ctx context.Context) ([]byte, error)
	Exchange(ctx context.Context, request []byte) ([]byte, error)
}

// New returns a new unix socket client. No connection is made until Connect.
func New(cfg Config) *Socket {
	return &Socket{Config: cfg}
}

// Socket is a length-framed client of a single unix socket connection.
// It is not safe for concurrent use.
type Socket struct {
	Config
	conn net.Conn
}

// Connect dials the socket path. A missing path yields ErrConnectionUnavailable
// without a dial attempt.
func (s *Socket) Connect(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}

	path := socketPath(s.Address)

	if !Exists(path) {
		return fmt.Errorf("%w: '%s' does not exist", ErrConnectionUnavailable, path)
	}

	d := net.Dialer{Timeout: s.connectTimeout()}

	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		switch {
		case isNotExist(err):
			return fmt.Errorf("%w: '%s': %v", ErrConnectionUnavailable, path, err)
		case isTimeout(err):
			return fmt.Errorf("%w: connect to '%s': %v", ErrTimeout, path, err)
		default:
			return fmt.Errorf("%w: connect to '%s': %v", ErrConnection, path, err)
		}
	}

	s.conn = conn

	return nil
}

// Disconnect closes the connection. It is safe to call more than once.
func (s *Socket) Disconnect() (err error) {
	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
	}
	return err
}

// Send writes the request followed by a single NUL byte that marks the end
// of the request for the daemon. The connection is closed on failure.
func (s *Socket) Send(ctx context.Context, request []byte) error {
	if s.conn == nil {
		return fmt.Errorf("%w: attempt to write on nil connection", ErrConnection)
	}

	stop := s.watchContext(ctx)
	defer stop()

	if err := s.conn.SetWriteDeadline(deadline(ctx, s.writeTimeout())); err != nil {
		return s.fail(fmt.Errorf("%w: set write deadline: %v", ErrConnection, err))
	}

	msg := make([]byte, 0, len(request)+1)
	msg = append(msg, request...)
	msg = append(msg, 0)

	for written := 0; written < len(msg); {
		n, err := s.conn.Write(msg[written:])
		written += n
		if err != nil {
			return s.fail(s.classify(ctx, err, "write request"))
		}
	}

	return nil
}

// ReceiveFramed reads one response: a big-endian uint32 length prefix
// followed by exactly that many bytes.
//
// The prefix must arrive within InitialTimeout. The payload is read in
// reads of at most MaxChunk bytes, each bounded by ChunkTimeout.
// The connection is closed on failure.
func (s *Socket) ReceiveFramed(ctx context.Context) ([]byte, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("%w: attempt to read on nil connection", ErrConnection)
	}

	stop := s.watchContext(ctx)
	defer stop()

	if err := s.conn.SetReadDeadline(deadline(ctx, s.initialTimeout())); err != nil {
		return nil, s.fail(fmt.Errorf("%w: set read deadline: %v", ErrConnection, err))
	}

	var prefix [4]byte

	if n, err := io.ReadFull(s.conn, prefix[:]); err != nil {
		if isClosed(err) {
			return nil, s.fail(fmt.Errorf("%w: peer closed after %d of 4 length bytes", ErrProtocol, n))
		}
		return nil, s.fail(s.classify(ctx, err, "read length prefix"))
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size > maxFrameSize {
		return nil, s.fail(fmt.Errorf("%w: declared length %d exceeds limit %d", ErrProtocol, size, maxFrameSize))
	}

	total := int(size)
	buf := make([]byte, total)
	chunk := s.maxChunk()

	for got := 0; got < total; {
		if err := s.conn.SetReadDeadline(deadline(ctx, s.chunkTimeout())); err != nil {
			return nil, s.fail(fmt.Errorf("%w: set read deadline: %v", ErrConnection, err))
		}
		// the new deadline may have replaced the one set on cancellation
		if err := ctx.Err(); err != nil {
			return nil, s.fail(fmt.Errorf("%w: read payload (%d of %d bytes): %w", ErrTimeout, got, total, err))
		}

		n, err := s.conn.Read(buf[got:min(got+chunk, total)])
		got += n

		if err != nil {
			if got == total && errors.Is(err, io.EOF) {
				break
			}
			if isClosed(err) {
				return nil, s.fail(fmt.Errorf("%w: peer closed after %d of %d bytes", ErrProtocol, got, total))
			}
			return nil, s.fail(s.classify(ctx, err, fmt.Sprintf("read payload (%d of %d bytes)", got, total)))
		}
	}

	return buf, nil
}

// Exchange sends a request and receives its framed response.
func (s *Socket) Exchange(ctx context.Context, request []byte) ([]byte, error) {
	if err := s.Send(ctx, request); err != nil {
		return nil, err
	}
	return s.ReceiveFramed(ctx)
}

func (s *Socket) fail(err error) error {
	_ = s.Disconnect()
	return err
}

func (s *Socket) classify(ctx context.Context, err error, op string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, op, ctxErr)
	}
	if isTimeout(err) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	}
	if isClosed(err) {
		return fmt.Errorf("%w: %s: %v", ErrProtocol, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrConnection, op, err)
}

// watchContext unblocks pending I/O when ctx is cancelled.
func (s *Socket) watchContext(ctx context.Context) (stop func() bool) {
	conn := s.conn
	return context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(aLongTimeAgo)
	})
}
