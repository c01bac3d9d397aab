// Package vsock is a concrete corvus.Endpoint over AF_VSOCK, the
// hypervisor/guest socket family used to reach a microVM without a
// network interface. Framing is a 4-byte big-endian length prefix ahead
// of the payload, over github.com/mdlayher/vsock. The payload itself is
// corvus's own JSON wire envelopes (wire.go) rather than a generated
// protobuf message, since a vsock connection here carries whatever
// Contract the caller built, not one fixed agent protocol.
package vsock

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
)

const maxFrameBytes = 8 * 1024 * 1024

// frameCodec reads and writes length-prefixed JSON frames over conn.
type frameCodec struct {
	conn net.Conn
}

func newFrameCodec(conn net.Conn) *frameCodec {
	return &frameCodec{conn: conn}
}

func (c *frameCodec) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("vsock: marshal frame: %w", err)
	}
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(data)))
	copy(buf[4:], data)
	_, err = c.conn.Write(buf)
	return err
}

func (c *frameCodec) receive(dst any) error {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(c.conn, lenBuf); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(lenBuf)
	if n > maxFrameBytes {
		return fmt.Errorf("vsock: frame too large: %d bytes", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(c.conn, data); err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
