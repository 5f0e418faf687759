package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/catalystcommunity/wsprobe/internal/report"
	"github.com/catalystcommunity/wsprobe/probe"
)

var sent = probe.Message{Message: "Hello, how are you?", Timestamp: "2023-04-27T00:00:00Z"}

func TestPrinterText(t *testing.T) {
	cases := []struct {
		Description string
		Result      probe.Result
		Expect      string
	}{
		{
			Description: "valid json",
			Result:      probe.ValidJSON{Raw: `{"reply":"I am fine"}`, Value: map[string]any{"reply": "I am fine"}},
			Expect: heredoc.Doc(`
				Raw response received: {"reply":"I am fine"}
				Parsed JSON response: {
				  "reply": "I am fine"
				}
			`),
		},
		{
			Description: "large integer printed unchanged",
			Result:      probe.Classify(`{"id":12345678901234567890}`, sent),
			Expect: heredoc.Doc(`
				Raw response received: {"id":12345678901234567890}
				Parsed JSON response: {
				  "id": 12345678901234567890
				}
			`),
		},
		{
			Description: "plain text",
			Result:      probe.PlainText{Raw: "ok"},
			Expect: heredoc.Doc(`
				Raw response received: ok
				Response is not valid JSON
			`),
		},
		{
			Description: "marker with undecodable content",
			Result:      probe.PlainText{Raw: "Echo: hi"},
			Expect: heredoc.Doc(`
				Raw response received: Echo: hi
				Response is not valid JSON
				Could not parse the echo content as JSON
			`),
		},
		{
			Description: "echo of the sent message",
			Result: probe.EchoWrapped{
				Raw:         `Echo: {"message":"Hello, how are you?","timestamp":"2023-04-27T00:00:00Z"}`,
				Prefix:      probe.EchoMarker,
				Inner:       map[string]any{"message": "Hello, how are you?", "timestamp": "2023-04-27T00:00:00Z"},
				MatchesSent: true,
			},
			Expect: heredoc.Doc(`
				Raw response received: Echo: {"message":"Hello, how are you?","timestamp":"2023-04-27T00:00:00Z"}
				Response is not valid JSON
				ISSUE DETECTED: The response is 'Echo: ' + the original message: {
				  "message": "Hello, how are you?",
				  "timestamp": "2023-04-27T00:00:00Z"
				}
			`),
		},
		{
			Description: "echo of something else",
			Result: probe.EchoWrapped{
				Raw:    `Echo: [1]`,
				Prefix: probe.EchoMarker,
				Inner:  []any{json.Number("1")},
			},
			Expect: heredoc.Doc(`
				Raw response received: Echo: [1]
				Response is not valid JSON
				ISSUE DETECTED: The response is 'Echo: ' + the original message: [
				  1
				]
				Note: the echoed content differs from the message that was sent
			`),
		},
		{
			Description: "timeout",
			Result:      probe.Timeout{After: 10 * time.Second},
			Expect:      "Timeout waiting for response (10s)\n",
		},
		{
			Description: "transport error",
			Result:      probe.TransportError{Op: probe.OpConnect, Err: errors.New("connection refused")},
			Expect:      "Error: connect: connection refused\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.Description, func(t *testing.T) {
			var buf bytes.Buffer
			err := report.NewPrinter(&buf, report.FormatText).Print("ws://localhost:8083/ws/chat", sent, tc.Result, time.Second)
			require.NoError(t, err)
			assert.Equal(t, tc.Expect, buf.String())
		})
	}
}

func TestPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	r := probe.EchoWrapped{
		Raw:         `Echo: {"message":"Hello, how are you?","timestamp":"2023-04-27T00:00:00Z"}`,
		Prefix:      probe.EchoMarker,
		Inner:       map[string]any{"message": "Hello, how are you?", "timestamp": "2023-04-27T00:00:00Z"},
		MatchesSent: true,
	}

	err := report.NewPrinter(&buf, report.FormatJSON).Print("ws://localhost:8083/ws/chat", sent, r, 1500*time.Millisecond)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "echo_wrapped", got["outcome"])
	assert.Equal(t, "ws://localhost:8083/ws/chat", got["endpoint"])
	assert.Equal(t, true, got["matches_sent"])
	assert.Equal(t, float64(1500), got["elapsed_ms"])
	assert.Equal(t, r.Raw, got["raw"])
	assert.NotContains(t, got, "error")
	assert.NotContains(t, got, "value")
}

func TestPrinterYAML(t *testing.T) {
	var buf bytes.Buffer
	r := probe.TransportError{Op: probe.OpReceive, Err: errors.New("EOF")}

	err := report.NewPrinter(&buf, report.FormatYAML).Print("ws://localhost:8083/ws/chat", sent, r, 0)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "transport_error", got["outcome"])
	assert.Equal(t, "receive: EOF", got["error"])
	assert.NotContains(t, got, "raw")
}

func TestNewSummaryPlainTextKeepsEmptyRaw(t *testing.T) {
	s := report.NewSummary("ws://x", sent, probe.PlainText{Raw: ""}, 0)
	require.NotNil(t, s.Raw)
	assert.Equal(t, "", *s.Raw)
	assert.Nil(t, s.MatchesSent)
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"text", "JSON", "yaml"} {
		_, err := report.ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := report.ParseFormat("xml")
	assert.ErrorIs(t, err, report.ErrUnknownFormat)
}
