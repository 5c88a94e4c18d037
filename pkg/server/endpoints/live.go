package endpoints

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/objperms/objperms/pkg/events"
	"github.com/objperms/objperms/pkg/server"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The panel page is served same-origin with this stream.
		// Deployments fronting the server elsewhere terminate origin
		// checks at the proxy.
		return true
	},
}

// pingPeriod keeps idle connections alive through proxies.
const pingPeriod = 54 * time.Second

// RegisterEventsEndpoint registers the live-update stream. Each open
// panel holds one connection and refreshes itself when a change for
// its object arrives.
func RegisterEventsEndpoint(srv *server.Server) {
	if !srv.Config.LiveUpdatesEnabled {
		return
	}
	router := panelRouter(srv)

	// GET /{kind}/{obj}/events - Change stream for one object
	router.HandleFunc("/{kind}/{obj:[0-9]+}/events", handleEvents(srv))
}

func handleEvents(srv *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, objID, err := panelVars(srv, r)
		if err != nil {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}

		// Subscribe before answering the handshake, so a change
		// published right after the dial returns is not missed.
		sub := srv.Bus.Subscribe()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			sub.Close()
			log.Printf("websocket upgrade failed: %v", err)
			return
		}

		go writeChanges(conn, sub, kind.Kind, objID)
		go readUntilClosed(conn, sub)
	}
}

// writeChanges forwards changes for one object to the connection,
// pinging periodically so proxies don't reap it.
func writeChanges(conn *websocket.Conn, sub *events.Subscription, objKind string, objID int64) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case change, ok := <-sub.C():
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if change.ObjKind != objKind || change.ObjID != objID {
				continue
			}
			if err := conn.WriteJSON(change); err != nil {
				return
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readUntilClosed drains the connection so close frames are processed,
// tearing the subscription down when the peer goes away.
func readUntilClosed(conn *websocket.Conn, sub *events.Subscription) {
	defer func() {
		sub.Close()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}
	}
}
