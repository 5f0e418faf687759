// Package chatserver is a stand-in for a chat websocket endpoint. Each mode
// reproduces one way a real or broken chat backend answers a message.
package chatserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/goto/salt/log"

	"github.com/catalystcommunity/wsprobe/probe"
	v1 "github.com/catalystcommunity/wsprobe/v1"
)

type Mode string

const (
	// ModeEcho replies with probe.EchoMarker followed by the request.
	ModeEcho Mode = "echo"
	// ModeJSON replies {"reply": <reply>}.
	ModeJSON Mode = "json"
	// ModeText replies with the reply text as-is.
	ModeText Mode = "text"
	// ModeSilent reads requests and never answers.
	ModeSilent Mode = "silent"
	// ModeDeprecated answers like the retired chat handler did.
	ModeDeprecated Mode = "deprecated"
)

var Modes = []Mode{ModeEcho, ModeJSON, ModeText, ModeSilent, ModeDeprecated}

var ErrUnknownMode = errors.New("unknown mode")

const deprecatedNotice = "This WebSocket endpoint is deprecated. Please use ws://localhost:8083/ws/chat instead."

type Config struct {
	Mode  Mode   `mapstructure:"mode" yaml:"mode" default:"echo"`
	Reply string `mapstructure:"reply" yaml:"reply" default:""`
}

// Handler returns an accept func serving cfg.Mode. An empty reply defaults to
// "I am fine" in json mode and "ok" in text mode.
func Handler(cfg Config, logger log.Logger) (v1.AcceptFunc, error) {
	var respond func(req []byte) ([]byte, bool)

	switch cfg.Mode {
	case ModeEcho:
		respond = func(req []byte) ([]byte, bool) {
			return append([]byte(probe.EchoMarker), req...), true
		}
	case ModeJSON:
		reply := cfg.Reply
		if reply == "" {
			reply = "I am fine"
		}
		body, err := json.Marshal(map[string]string{"reply": reply})
		if err != nil {
			return nil, err
		}
		respond = func([]byte) ([]byte, bool) { return body, true }
	case ModeText:
		reply := cfg.Reply
		if reply == "" {
			reply = "ok"
		}
		respond = func([]byte) ([]byte, bool) { return []byte(reply), true }
	case ModeSilent:
		respond = func([]byte) ([]byte, bool) { return nil, false }
	case ModeDeprecated:
		respond = deprecatedReply
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}

	return func(conn *v1.Conn) error {
		defer conn.Close()

		remote := conn.RemoteAddr().String()
		logger.Info("connection opened", "remote", remote, "mode", string(cfg.Mode))

		for {
			_, req, err := conn.ReadMessage()
			if err != nil {
				if errors.Is(err, io.EOF) {
					logger.Info("connection closed", "remote", remote)
					return nil
				}
				logger.Warn("read failed", "remote", remote, "err", err)
				return err
			}
			logger.Debug("message received", "remote", remote, "message", string(req))

			resp, ok := respond(req)
			if !ok {
				continue
			}
			if err := conn.WriteMessage(v1.TextMessage, resp); err != nil {
				logger.Warn("write failed", "remote", remote, "err", err)
				return err
			}
		}
	}, nil
}

func deprecatedReply(req []byte) ([]byte, bool) {
	original := json.RawMessage(req)
	if !json.Valid(req) {
		quoted, _ := json.Marshal(string(req))
		original = quoted
	}
	body, err := json.Marshal(struct {
		Error           string          `json:"error"`
		OriginalMessage json.RawMessage `json:"original_message"`
	}{
		Error:           deprecatedNotice,
		OriginalMessage: original,
	})
	if err != nil {
		return nil, false
	}
	return body, true
}
