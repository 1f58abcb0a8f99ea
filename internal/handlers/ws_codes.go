// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the realtime endpoint.
const (
	BadSubprotocolError websocket.StatusCode = 3000 // Client offered subprotocols, none of them ours.
	SlowConsumerError   websocket.StatusCode = 3004 // Outbound queue overflowed; the client was evicted.
)
