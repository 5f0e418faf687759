package v1

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// MessageType is the opcode of a data message.
type MessageType byte

const (
	TextMessage   MessageType = 0x1
	BinaryMessage MessageType = 0x2
)

const (
	opContinuation byte = 0x0
	opText         byte = 0x1
	opBinary       byte = 0x2
	opClose        byte = 0x8
	opPing         byte = 0x9
	opPong         byte = 0xA
)

// Control frames carry at most this many payload bytes and are never fragmented.
const maxControlPayload = 125

// Close status codes used by this package.
const (
	CloseNormalClosure = 1000
	CloseNoStatus      = 1005
)

var (
	ErrMessageTooLarge = errors.New("websocks: message too large")
	ErrProtocol        = errors.New("websocks: protocol error")
)

// CloseError is returned by reads after the peer sent a close frame.
// errors.Is(err, io.EOF) is true for a CloseError.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("websocks: connection closed by peer (%d)", e.Code)
	}
	return fmt.Sprintf("websocks: connection closed by peer (%d): %s", e.Code, e.Reason)
}

func (e *CloseError) Is(target error) bool {
	return target == io.EOF
}

// Conn is a WebSocket connection. It implements net.Conn: Read returns the payload of one
// data frame and Write sends one text frame. ReadMessage and WriteMessage operate on whole
// messages.
//
// The isClient field determines whether this connection originated from a client
// (Dial) or server (NewHandler), which affects frame masking behavior per RFC 6455.
type Conn struct {
	conn     net.Conn
	br       *bufio.Reader
	isClient bool
	maxBytes int64

	writeMu   sync.Mutex
	closeSent bool // guarded by writeMu
	closeOnce sync.Once
	closeErr  error
}

func newConn(conn net.Conn, br *bufio.Reader, isClient bool, maxBytes int64) *Conn {
	if br == nil {
		br = bufio.NewReader(conn)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMessageBytes
	}
	return &Conn{conn: conn, br: br, isClient: isClient, maxBytes: maxBytes}
}

// ReadMessage reads the next complete data message, reassembling fragments.
//
// Control frames received while waiting are handled in place: pings are answered with a
// pong carrying the same payload, pongs are discarded, and a close frame is acknowledged
// and reported as a *CloseError.
func (c *Conn) ReadMessage() (MessageType, []byte, error) {
	var (
		msgType MessageType
		data    []byte
		started bool
	)
	for {
		frame, err := c.readFrame()
		if err != nil {
			return 0, nil, err
		}

		switch frame.opcode {
		case opPing:
			if err := c.writeFrame(opPong, frame.payload); err != nil {
				return 0, nil, err
			}
			continue
		case opPong:
			continue
		case opClose:
			return 0, nil, c.handleClose(frame.payload)
		case opText, opBinary:
			if started {
				return 0, nil, fmt.Errorf("%w: new data frame inside fragmented message", ErrProtocol)
			}
			started = true
			msgType = MessageType(frame.opcode)
		case opContinuation:
			if !started {
				return 0, nil, fmt.Errorf("%w: continuation frame without message", ErrProtocol)
			}
		default:
			return 0, nil, fmt.Errorf("%w: unknown opcode 0x%x", ErrProtocol, frame.opcode)
		}

		if int64(len(data))+int64(len(frame.payload)) > c.maxBytes {
			return 0, nil, ErrMessageTooLarge
		}
		data = append(data, frame.payload...)

		if frame.fin {
			return msgType, data, nil
		}
	}
}

// WriteMessage sends data as a single unfragmented message.
func (c *Conn) WriteMessage(messageType MessageType, data []byte) error {
	switch messageType {
	case TextMessage, BinaryMessage:
	default:
		return fmt.Errorf("%w: invalid message type %d", ErrProtocol, messageType)
	}
	return c.writeFrame(byte(messageType), data)
}

// Read implements net.Conn.Read by reading one data message and copying its payload into b.
//
// Buffer behavior:
//   - If the message is larger than the buffer, only buffer-sized data is copied
//   - Remaining message data is discarded
//   - For reliable data transfer, ensure buffer is larger than expected message size
//
// Use ReadMessage to receive whole messages without truncation.
func (c *Conn) Read(b []byte) (int, error) {
	_, data, err := c.ReadMessage()
	if err != nil {
		return 0, err
	}
	return copy(b, data), nil
}

// Write implements net.Conn.Write. Each call sends exactly one text frame.
func (c *Conn) Write(b []byte) (int, error) {
	if err := c.writeFrame(opText, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close sends a normal closure frame, unless a close frame was already sent in reply
// to the peer, and closes the underlying network connection. Subsequent calls return
// the result of the first call.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		c.writeFrame(opClose, closePayload(CloseNormalClosure, ""))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// LocalAddr implements net.Conn.LocalAddr by returning the local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr implements net.Conn.RemoteAddr by returning the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// SetDeadline implements net.Conn.SetDeadline by setting read and write deadlines.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// SetReadDeadline implements net.Conn.SetReadDeadline by setting the read deadline.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// SetWriteDeadline implements net.Conn.SetWriteDeadline by setting the write deadline.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *Conn) handleClose(payload []byte) error {
	ce := &CloseError{Code: CloseNoStatus}
	if len(payload) >= 2 {
		ce.Code = int(binary.BigEndian.Uint16(payload[:2]))
		ce.Reason = string(payload[2:])
	}
	// Echo the status back; the peer is about to drop the socket anyway.
	c.writeFrame(opClose, closePayload(ce.Code, ""))
	return ce
}

func closePayload(code int, reason string) []byte {
	if code == CloseNoStatus {
		return nil
	}
	p := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(p, uint16(code))
	copy(p[2:], reason)
	return p
}

// wsFrame represents a parsed WebSocket frame according to RFC 6455.
type wsFrame struct {
	fin     bool   // FIN bit: indicates if this is the final fragment
	opcode  byte   // Frame opcode (0x1=text, 0x2=binary, 0x8=close, etc.)
	masked  bool   // MASK bit: indicates if payload is masked
	payload []byte // Frame payload data (unmasked)
}

func (c *Conn) readFrame() (*wsFrame, error) {
	var header [2]byte
	if _, err := io.ReadFull(c.br, header[:]); err != nil {
		return nil, err
	}

	frame := &wsFrame{
		fin:    (header[0] & 0x80) != 0,
		opcode: header[0] & 0x0F,
		masked: (header[1] & 0x80) != 0,
	}

	if !c.isClient && !frame.masked {
		return nil, fmt.Errorf("%w: unmasked client frame", ErrProtocol)
	}

	payloadLen := uint64(header[1] & 0x7F)

	if payloadLen == 126 {
		var extended [2]byte
		if _, err := io.ReadFull(c.br, extended[:]); err != nil {
			return nil, err
		}
		payloadLen = uint64(binary.BigEndian.Uint16(extended[:]))
	} else if payloadLen == 127 {
		var extended [8]byte
		if _, err := io.ReadFull(c.br, extended[:]); err != nil {
			return nil, err
		}
		payloadLen = binary.BigEndian.Uint64(extended[:])
	}

	if frame.opcode&0x8 != 0 {
		if !frame.fin {
			return nil, fmt.Errorf("%w: fragmented control frame", ErrProtocol)
		}
		if payloadLen > maxControlPayload {
			return nil, fmt.Errorf("%w: control frame payload of %d bytes", ErrProtocol, payloadLen)
		}
	}

	if payloadLen > uint64(c.maxBytes) {
		return nil, ErrMessageTooLarge
	}

	var maskKey [4]byte
	if frame.masked {
		if _, err := io.ReadFull(c.br, maskKey[:]); err != nil {
			return nil, err
		}
	}

	frame.payload = make([]byte, payloadLen)
	if _, err := io.ReadFull(c.br, frame.payload); err != nil {
		return nil, err
	}

	if frame.masked {
		for i := range frame.payload {
			frame.payload[i] ^= maskKey[i%4]
		}
	}

	return frame, nil
}

func (c *Conn) writeFrame(opcode byte, payload []byte) error {
	payloadLen := len(payload)

	buf := make([]byte, 0, 14+payloadLen)
	buf = append(buf, 0x80|opcode) // FIN=1, opcode

	var maskBit byte
	if c.isClient {
		maskBit = 0x80 // Client frames must be masked
	}

	if payloadLen < 126 {
		buf = append(buf, byte(payloadLen)|maskBit)
	} else if payloadLen < 65536 {
		buf = append(buf, 126|maskBit)
		buf = binary.BigEndian.AppendUint16(buf, uint16(payloadLen))
	} else {
		buf = append(buf, 127|maskBit)
		buf = binary.BigEndian.AppendUint64(buf, uint64(payloadLen))
	}

	if c.isClient {
		var maskKey [4]byte
		if _, err := rand.Read(maskKey[:]); err != nil {
			return err
		}
		buf = append(buf, maskKey[:]...)
		for i := 0; i < payloadLen; i++ {
			buf = append(buf, payload[i]^maskKey[i%4])
		}
	} else {
		buf = append(buf, payload...)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	// RFC 6455 allows one close frame per endpoint.
	if opcode == opClose {
		if c.closeSent {
			return nil
		}
		c.closeSent = true
	}
	_, err := c.conn.Write(buf)
	return err
}
