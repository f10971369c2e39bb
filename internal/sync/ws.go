package sync

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced in front of the router
	},
}

// WSHandler upgrades to a websocket that receives hub events. A
// ?user_id= query parameter follows one user from the start.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Debug("websocket upgrade failed")
			return
		}

		// The hub writes to registered connections, so the welcome goes out
		// before registration: a websocket allows one writer at a time.
		_ = ws.WriteMessage(
			websocket.TextMessage,
			[]byte(`{"type":"welcome","transport":"websocket"}`+"\n"),
		)

		hub.AddWS(ws, c.Query("user_id"))
		hub.log.Info("ws client connected")

		for {
			_, msg, err := ws.ReadMessage()
			if err != nil {
				break
			}
			if uid, ok := parseSubscribe(msg); ok {
				hub.FollowWS(ws, uid)
			}
		}

		hub.RemoveWS(ws)
		hub.log.Info("ws client disconnected")
	}
}
