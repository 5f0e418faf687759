// Package v1 provides a lightweight WebSocket implementation that presents WebSocket connections
// as standard net.Conn interfaces, with message-level helpers for callers that exchange whole
// text messages rather than raw frames.
//
// The package supports both client and server functionality:
//   - Server: Create WebSocket servers that accept connections via HTTP upgrade
//   - Client: Connect to WebSocket servers (ws:// and wss://) and get a *Conn
//
// # Protocol Support and Limitations
//
// Supported WebSocket features:
//   - Text and binary data frames (opcodes 0x1/0x2)
//   - Fragmented messages (continuation frames) via ReadMessage
//   - Ping/Pong frames: pings are answered automatically, pongs are skipped
//   - Close frames with status code and reason
//   - Client-side frame masking per RFC 6455
//   - Payload lengths up to 64-bit values, bounded by MaxMessageBytes
//
// Not supported:
//   - WebSocket extensions (compression, etc.)
//   - WebSocket subprotocols
//
// # Concurrency and Thread Safety
//
// A Conn supports one concurrent reader and any number of concurrent writers; writes are
// serialized internally so that automatic pong replies never interleave with caller frames.
// Close can be called from any goroutine and is idempotent.
//
// # Error Handling
//
// Connection errors:
//   - net.OpError: Network-level connection failures
//   - context.DeadlineExceeded / context.Canceled: dial or handshake aborted
//   - os.ErrDeadlineExceeded: read or write deadline reached
//
// WebSocket protocol errors:
//   - ErrUnsupportedScheme: URL scheme is neither ws nor wss
//   - ErrBadHandshake: HTTP upgrade rejected (status != 101)
//   - ErrInvalidAcceptKey: Server returned incorrect Sec-WebSocket-Accept
//   - ErrMessageTooLarge: message exceeds the configured limit
//   - *CloseError: peer sent a close frame; errors.Is(err, io.EOF) reports true
//
// # Resource Management
//
// Always close connections when done to prevent resource leaks:
//
//	conn, err := v1.Connect(ctx, url)
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
// Client with a bounded receive:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//
//	conn, err := v1.Connect(ctx, "ws://localhost:8080/ws")
//	if err != nil {
//		return fmt.Errorf("connect: %w", err)
//	}
//	defer conn.Close()
//
//	if err := conn.WriteMessage(v1.TextMessage, []byte("hello")); err != nil {
//		return fmt.Errorf("write: %w", err)
//	}
//
//	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
//	_, data, err := conn.ReadMessage()
//	if err != nil {
//		return fmt.Errorf("read: %w", err)
//	}
package v1

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/sha1"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrUnsupportedScheme = errors.New("websocks: unsupported url scheme")
	ErrBadHandshake      = errors.New("websocks: handshake failed")
	ErrInvalidAcceptKey  = errors.New("websocks: invalid accept key")
)

// DefaultMaxMessageBytes bounds a single reassembled message when no limit is configured.
const DefaultMaxMessageBytes = 1 << 20

// Dialer holds options for establishing client connections. The zero value is usable.
type Dialer struct {
	// TLSConfig is used for wss:// URLs. When nil a default config with the
	// URL host as ServerName is used.
	TLSConfig *tls.Config

	// Header carries additional headers sent with the upgrade request.
	Header http.Header

	// MaxMessageBytes limits the size of a message returned by ReadMessage.
	// Zero means DefaultMaxMessageBytes.
	MaxMessageBytes int64
}

// Connect establishes a WebSocket connection to wsURL with a zero-value Dialer.
func Connect(ctx context.Context, wsURL string) (*Conn, error) {
	var d Dialer
	return d.Dial(ctx, wsURL)
}

// Dial establishes a WebSocket connection to the specified URL.
//
// The function handles the complete WebSocket handshake process:
//   - Parses the WebSocket URL (returns ErrUnsupportedScheme for non ws/wss schemes)
//   - Establishes a TCP connection, wrapped in TLS for wss://
//   - Performs the WebSocket upgrade handshake per RFC 6455
//   - Validates the server's response (status 101, Sec-WebSocket-Accept header)
//
// Both the dial and the handshake honour ctx: a deadline on ctx bounds the handshake
// exchange, and cancelling ctx aborts it. Once Dial returns, ctx no longer affects the
// connection; use SetReadDeadline/SetWriteDeadline for per-operation bounds.
func (d *Dialer) Dial(ctx context.Context, wsURL string) (*Conn, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}

	var defaultPort string
	switch u.Scheme {
	case "ws":
		defaultPort = "80"
	case "wss":
		defaultPort = "443"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	addr := net.JoinHostPort(u.Hostname(), port)

	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if u.Scheme == "wss" {
		cfg := d.TLSConfig
		if cfg == nil {
			cfg = &tls.Config{}
		} else {
			cfg = cfg.Clone()
		}
		if cfg.ServerName == "" {
			cfg.ServerName = u.Hostname()
		}
		tlsConn := tls.Client(conn, cfg)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		conn = tlsConn
	}

	// The handshake is plain blocking I/O, so ctx is mapped onto the socket deadline.
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})

	br, err := d.handshake(conn, u)
	if !stop() {
		conn.Close()
		if err == nil {
			err = ctx.Err()
		}
		return nil, err
	}
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetDeadline(time.Time{})

	return newConn(conn, br, true, d.MaxMessageBytes), nil
}

func (d *Dialer) handshake(conn net.Conn, u *url.URL) (*bufio.Reader, error) {
	key := make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	wsKey := base64.StdEncoding.EncodeToString(key)

	path := u.RequestURI()
	if path == "" {
		path = "/"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&b, "Host: %s\r\n", u.Host)
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&b, "Sec-WebSocket-Key: %s\r\n", wsKey)
	b.WriteString("Sec-WebSocket-Version: 13\r\n")
	for name, values := range d.Header {
		for _, v := range values {
			fmt.Fprintf(&b, "%s: %s\r\n", name, v)
		}
	}
	b.WriteString("\r\n")

	if _, err := conn.Write([]byte(b.String())); err != nil {
		return nil, err
	}

	// The reader is kept for framing: a server may send its first frame
	// in the same segment as the 101 response.
	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, &http.Request{Method: http.MethodGet, URL: u})
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		return nil, fmt.Errorf("%w: %d", ErrBadHandshake, resp.StatusCode)
	}

	if resp.Header.Get("Sec-WebSocket-Accept") != computeAcceptKey(wsKey) {
		return nil, ErrInvalidAcceptKey
	}

	return br, nil
}

const websocketMagicString = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

func computeAcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key + websocketMagicString))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
