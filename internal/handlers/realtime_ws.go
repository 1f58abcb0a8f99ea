// internal/handlers/realtime_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/qconnect/qconnect/internal/middleware"
	"github.com/qconnect/qconnect/internal/realtime"
	"github.com/sirupsen/logrus"
)

const (
	realtimeSubprotocol = "qconnect"
	readLimitBytes      = 64 << 10
	pingInterval        = 30 * time.Second
	writeTimeout        = 5 * time.Second
)

// RealtimeWSHandler upgrades to the realtime protocol and pumps frames
// between the connection and the hub until either side goes away.
func RealtimeWSHandler(logger *logrus.Logger, hub *realtime.Hub, allowedOrigins []string) http.HandlerFunc {
	patterns := originPatterns(allowedOrigins)
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{realtimeSubprotocol},
			OriginPatterns: patterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if r.Header.Get("Sec-WebSocket-Protocol") != "" && c.Subprotocol() != realtimeSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the qconnect subprotocol")
			return
		}
		c.SetReadLimit(readLimitBytes)

		client := hub.Register(realtime.DefaultSendBuffer)
		middleware.LogWebSocketConnect(logger, remoteAddr, client.ID.String())

		ctx, cancel := context.WithCancel(r.Context())
		go writePump(ctx, cancel, c, client, logger)

		err = readPump(ctx, c, hub, client, logger)

		cancel()
		hub.Unregister(client)
		middleware.LogWebSocketDisconnect(logger, remoteAddr, client.ID.String(), err)
	}
}

// readPump hands every text frame to the hub. It returns the error that
// ended the connection, or nil on a normal close.
func readPump(ctx context.Context, c *websocket.Conn, hub *realtime.Hub, client *realtime.Client, logger *logrus.Logger) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			logger.Warnf("realtime: ignoring non-text frame (type %d) from %v", typ, client.ID)
			continue
		}
		hub.Dispatch(client, msg)
	}
}

// writePump drains the client's queue and pings every 30s. A failed write or
// ping cancels ctx so the read side stops too.
func writePump(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, client *realtime.Client, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return

		case <-client.Done():
			if ctx.Err() != nil {
				return
			}
			switch reason := client.Reason(); {
			case errors.Is(reason, realtime.ErrHubClosed):
				_ = c.Close(websocket.StatusGoingAway, "server shutting down")
			case errors.Is(reason, realtime.ErrEvicted):
				logger.Warnf("realtime: evicting slow client %v", client.ID)
				_ = c.Close(SlowConsumerError, "outbound queue overflow")
			default:
				_ = c.Close(websocket.StatusNormalClosure, "")
			}
			return

		case msg := <-client.Send():
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("realtime: failed to marshal %q for %v: %v", msg.Event, client.ID, err)
				continue
			}
			writeCtx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			wcancel()
			if err != nil {
				logger.Warnf("realtime: write to %v failed: %v", client.ID, err)
				return
			}

		case <-ticker.C:
			pingCtx, pcancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			pcancel()
			if err != nil {
				logger.Warnf("realtime: ping to %v failed: %v. Assuming disconnect.", client.ID, err)
				return
			}
		}
	}
}

// originPatterns turns configured origins into the host patterns the
// websocket library matches against. Same-host requests are always allowed.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
