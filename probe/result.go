package probe

import (
	"fmt"
	"time"
)

// Kind discriminates Result variants.
type Kind int

const (
	KindValidJSON Kind = iota + 1
	KindPlainText
	KindEchoWrapped
	KindTimeout
	KindTransportError
)

func (k Kind) String() string {
	switch k {
	case KindValidJSON:
		return "valid_json"
	case KindPlainText:
		return "plain_text"
	case KindEchoWrapped:
		return "echo_wrapped"
	case KindTimeout:
		return "timeout"
	case KindTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the outcome of one probe. It is one of ValidJSON, PlainText,
// EchoWrapped, Timeout or TransportError.
type Result interface {
	Kind() Kind
	isResult()
}

// ValidJSON is a response that decoded as JSON. Numbers in Value are
// json.Number.
type ValidJSON struct {
	Raw   string
	Value any
}

// PlainText is a response that is not JSON and not a decodable echo.
type PlainText struct {
	Raw string
}

// EchoWrapped is a response of the form EchoMarker + JSON, the signature of a
// server that echoes requests back instead of answering them.
type EchoWrapped struct {
	Raw    string
	Prefix string
	Inner  any
	// MatchesSent reports whether Inner deep-equals the message that was sent.
	MatchesSent bool
}

// Timeout means no response arrived within the bound.
type Timeout struct {
	After time.Duration
}

// Op names the step of a probe that failed.
type Op string

const (
	OpConnect Op = "connect"
	OpSend    Op = "send"
	OpReceive Op = "receive"
)

// TransportError is a connect, send or receive failure.
type TransportError struct {
	Op  Op
	Err error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e TransportError) Unwrap() error {
	return e.Err
}

func (ValidJSON) Kind() Kind      { return KindValidJSON }
func (PlainText) Kind() Kind      { return KindPlainText }
func (EchoWrapped) Kind() Kind    { return KindEchoWrapped }
func (Timeout) Kind() Kind        { return KindTimeout }
func (TransportError) Kind() Kind { return KindTransportError }

func (ValidJSON) isResult()      {}
func (PlainText) isResult()      {}
func (EchoWrapped) isResult()    {}
func (Timeout) isResult()        {}
func (TransportError) isResult() {}

// Failed reports whether r is a Timeout or a TransportError.
func Failed(r Result) bool {
	switch r.(type) {
	case Timeout, TransportError:
		return true
	}
	return false
}
