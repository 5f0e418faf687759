package v1

import (
	"fmt"
	"net/http"
	"strings"
)

// AcceptFunc is a callback function that handles incoming WebSocket connections.
// It receives a *Conn that represents the WebSocket connection and should
// return an error if the connection handling fails.
//
// The connection passed to AcceptFunc is already upgraded to WebSocket protocol.
// AcceptFunc owns the connection and must close it.
type AcceptFunc func(conn *Conn) error

// Server represents a WebSocket server that can accept incoming connections.
// It embeds an http.Server and handles the WebSocket upgrade process automatically.
// When a WebSocket upgrade request is received on the configured path, it calls
// the provided AcceptFunc with the resulting connection.
type Server struct {
	*http.Server
	path       string
	acceptFunc AcceptFunc
}

// NewServer creates a new WebSocket server that listens on the specified address and path.
//
// Server behavior:
//   - Only requests to the exact path will be handled as WebSocket upgrades
//   - Non-WebSocket requests to the path return 400 Bad Request
//   - Requests to other paths return 404 Not Found
//   - Each accepted connection runs in its own goroutine
//
// The returned Server embeds http.Server, so graceful shutdown is available through
// Shutdown. Hijacked connections are not tracked by http.Server; AcceptFunc
// implementations should return once their connection is closed.
func NewServer(addr, path string, acceptFunc AcceptFunc) *Server {
	s := &Server{
		Server: &http.Server{
			Addr: addr,
		},
		path:       path,
		acceptFunc: acceptFunc,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, NewHandler(acceptFunc))
	s.Server.Handler = mux

	return s
}

// Start begins listening for HTTP connections and handling WebSocket upgrades.
// This method blocks until the server is stopped or encounters an error.
func (s *Server) Start() error {
	return s.ListenAndServe()
}

// NewHandler creates an HTTP handler function that processes WebSocket upgrade requests.
//
// The handler will:
//   - Validate WebSocket upgrade headers (Connection, Upgrade, Sec-WebSocket-Key, etc.)
//   - Hijack the HTTP connection
//   - Send the WebSocket handshake response
//   - Call acceptFunc on the handler goroutine with the upgraded connection
//
// Returns an http.HandlerFunc that can be registered with an HTTP multiplexer.
func NewHandler(acceptFunc AcceptFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !isWebSocketUpgrade(r) {
			http.Error(w, "Not a WebSocket upgrade", http.StatusBadRequest)
			return
		}

		hijacker, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "WebSocket upgrade not supported", http.StatusInternalServerError)
			return
		}

		conn, bufrw, err := hijacker.Hijack()
		if err != nil {
			http.Error(w, "Failed to hijack connection", http.StatusInternalServerError)
			return
		}

		acceptKey := computeAcceptKey(r.Header.Get("Sec-WebSocket-Key"))
		response := fmt.Sprintf(
			"HTTP/1.1 101 Switching Protocols\r\n"+
				"Upgrade: websocket\r\n"+
				"Connection: Upgrade\r\n"+
				"Sec-WebSocket-Accept: %s\r\n"+
				"\r\n", acceptKey)

		if _, err := conn.Write([]byte(response)); err != nil {
			conn.Close()
			return
		}

		acceptFunc(newConn(conn, bufrw.Reader, false, 0))
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	return headerContainsToken(r.Header.Get("Connection"), "upgrade") &&
		strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		r.Header.Get("Sec-WebSocket-Key") != "" &&
		r.Header.Get("Sec-WebSocket-Version") == "13"
}

// headerContainsToken reports whether a comma separated header value contains token.
// Browsers send "Connection: keep-alive, Upgrade".
func headerContainsToken(value, token string) bool {
	for _, part := range strings.Split(value, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}
