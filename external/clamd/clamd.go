// Package clamd is a minimal client for the ClamAV daemon's INSTREAM
// command over TCP.
package clamd

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"time"
)

const chunkSize = 2048

type Result struct {
	// Signature is the matched signature name, empty when the stream is
	// clean.
	Signature string
	Infected  bool
}

type Client struct {
	Addr        string
	DialTimeout time.Duration
}

func NewClient(addr string) Client {
	return Client{Addr: addr, DialTimeout: 10 * time.Second}
}

// Ping checks the daemon answers PONG.
func (c Client) Ping(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("c.dial(ctx). %w", err)
	}
	defer conn.Close()

	_, err = conn.Write([]byte("zPING\x00"))
	if err != nil {
		return fmt.Errorf(`conn.Write([]byte("zPING\x00")). %w`, err)
	}

	reply, err := readReply(conn)
	if err != nil {
		return fmt.Errorf("readReply(conn). %w", err)
	}
	if reply != "PONG" {
		return fmt.Errorf("unexpected reply from clamd: %q", reply)
	}
	return nil
}

// ScanStream submits the bytes through INSTREAM and parses the verdict
// line. The protocol frames the body as length-prefixed chunks ended by a
// zero-length chunk.
func (c Client) ScanStream(ctx context.Context, data []byte) (Result, error) {
	var result Result

	conn, err := c.dial(ctx)
	if err != nil {
		return result, fmt.Errorf("c.dial(ctx). %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	_, err = conn.Write([]byte("zINSTREAM\x00"))
	if err != nil {
		return result, fmt.Errorf(`conn.Write([]byte("zINSTREAM\x00")). %w`, err)
	}

	lenBuf := make([]byte, 4)
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		binary.BigEndian.PutUint32(lenBuf, uint32(end-off))
		if _, err = conn.Write(lenBuf); err != nil {
			return result, fmt.Errorf("conn.Write(lenBuf). %w", err)
		}
		if _, err = conn.Write(data[off:end]); err != nil {
			return result, fmt.Errorf("conn.Write(data[off:end]). %w", err)
		}
	}

	binary.BigEndian.PutUint32(lenBuf, 0)
	if _, err = conn.Write(lenBuf); err != nil {
		return result, fmt.Errorf("conn.Write(lenBuf). %w", err)
	}

	reply, err := readReply(conn)
	if err != nil {
		return result, fmt.Errorf("readReply(conn). %w", err)
	}

	switch {
	case strings.HasSuffix(reply, "OK"):
		return result, nil
	case strings.HasSuffix(reply, "FOUND"):
		result.Infected = true
		result.Signature = strings.TrimSuffix(strings.TrimPrefix(reply, "stream: "), " FOUND")
		return result, nil
	default:
		return result, fmt.Errorf("unexpected reply from clamd: %q", reply)
	}
}

func (c Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.DialTimeout}
	return dialer.DialContext(ctx, "tcp", c.Addr)
}

func readReply(conn net.Conn) (string, error) {
	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	if err != nil {
		return "", fmt.Errorf("conn.Read(buf). %w", err)
	}
	return strings.TrimRight(string(buf[:n]), "\x00\n"), nil
}
