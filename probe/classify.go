package probe

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// EchoMarker prefixes responses from servers that echo the request back.
// It is a heuristic: only this exact prefix is recognised.
const EchoMarker = "Echo: "

// Classify decides what kind of response raw is. Decode failures are part of
// the classification, never errors.
func Classify(raw string, sent Message) Result {
	if v, err := decode(raw); err == nil {
		return ValidJSON{Raw: raw, Value: v}
	}

	rest, ok := strings.CutPrefix(raw, EchoMarker)
	if !ok {
		return PlainText{Raw: raw}
	}

	inner, err := decode(rest)
	if err != nil {
		return PlainText{Raw: raw}
	}

	return EchoWrapped{
		Raw:         raw,
		Prefix:      EchoMarker,
		Inner:       inner,
		MatchesSent: cmp.Equal(inner, sent.value()),
	}
}

var errTrailingData = errors.New("trailing data after JSON value")

// decode parses exactly one JSON value. Numbers are kept as json.Number so
// values outside the float64 range, and large integers, survive unchanged.
func decode(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if err := dec.Decode(new(any)); err != io.EOF {
		return nil, errTrailingData
	}
	return v, nil
}
