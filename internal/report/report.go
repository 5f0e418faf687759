// Package report renders probe outcomes for people and for tooling.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/catalystcommunity/wsprobe/probe"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrUnknownFormat = errors.New("unknown output format")

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Summary is the machine readable form of one probe.
type Summary struct {
	Endpoint    string        `json:"endpoint" yaml:"endpoint"`
	Sent        probe.Message `json:"sent" yaml:"sent"`
	Outcome     string        `json:"outcome" yaml:"outcome"`
	Raw         *string       `json:"raw,omitempty" yaml:"raw,omitempty"`
	Value       any           `json:"value,omitempty" yaml:"value,omitempty"`
	Inner       any           `json:"inner,omitempty" yaml:"inner,omitempty"`
	MatchesSent *bool         `json:"matches_sent,omitempty" yaml:"matches_sent,omitempty"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
	ElapsedMS   int64         `json:"elapsed_ms" yaml:"elapsed_ms"`
}

func NewSummary(endpoint string, sent probe.Message, r probe.Result, elapsed time.Duration) Summary {
	s := Summary{
		Endpoint:  endpoint,
		Sent:      sent,
		Outcome:   r.Kind().String(),
		ElapsedMS: elapsed.Milliseconds(),
	}
	switch r := r.(type) {
	case probe.ValidJSON:
		s.Raw = &r.Raw
		s.Value = r.Value
	case probe.PlainText:
		s.Raw = &r.Raw
	case probe.EchoWrapped:
		s.Raw = &r.Raw
		s.Inner = r.Inner
		s.MatchesSent = &r.MatchesSent
	case probe.Timeout:
		s.Error = fmt.Sprintf("no response within %s", r.After)
	case probe.TransportError:
		s.Error = r.Error()
	}
	return s
}

type Printer struct {
	w      io.Writer
	format Format
}

func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{w: w, format: format}
}

// Print writes the outcome of one probe.
func (p *Printer) Print(endpoint string, sent probe.Message, r probe.Result, elapsed time.Duration) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewSummary(endpoint, sent, r, elapsed))
	case FormatYAML:
		out, err := yaml.Marshal(NewSummary(endpoint, sent, r, elapsed))
		if err != nil {
			return err
		}
		_, err = p.w.Write(out)
		return err
	case FormatText, "":
		return p.text(r)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, p.format)
	}
}

func (p *Printer) text(r probe.Result) error {
	var b strings.Builder

	switch r := r.(type) {
	case probe.ValidJSON:
		fmt.Fprintf(&b, "Raw response received: %s\n", r.Raw)
		fmt.Fprintf(&b, "Parsed JSON response: %s\n", indent(r.Value))
	case probe.PlainText:
		fmt.Fprintf(&b, "Raw response received: %s\n", r.Raw)
		b.WriteString("Response is not valid JSON\n")
		if strings.HasPrefix(r.Raw, probe.EchoMarker) {
			b.WriteString("Could not parse the echo content as JSON\n")
		}
	case probe.EchoWrapped:
		fmt.Fprintf(&b, "Raw response received: %s\n", r.Raw)
		b.WriteString("Response is not valid JSON\n")
		fmt.Fprintf(&b, "ISSUE DETECTED: The response is '%s' + the original message: %s\n", r.Prefix, indent(r.Inner))
		if !r.MatchesSent {
			b.WriteString("Note: the echoed content differs from the message that was sent\n")
		}
	case probe.Timeout:
		fmt.Fprintf(&b, "Timeout waiting for response (%s)\n", r.After)
	case probe.TransportError:
		fmt.Fprintf(&b, "Error: %s\n", r.Error())
	default:
		return fmt.Errorf("unexpected result %T", r)
	}

	_, err := io.WriteString(p.w, b.String())
	return err
}

func indent(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}
