package endpoints

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/troupe/internal/db"
	"github.com/Nixie-Tech-LLC/troupe/internal/events"
	"github.com/Nixie-Tech-LLC/troupe/internal/http/api"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type EventController struct {
	store db.Store
	hub   *events.Hub
}

func NewEventController(store db.Store, hub *events.Hub) *EventController {
	return &EventController{store: store, hub: hub}
}

// EventModule streams a project's rehearsal sync events over a websocket.
func EventModule(store db.Store, hub *events.Hub) api.Module {
	ctl := NewEventController(store, hub)
	return api.ModuleFunc(func(c *api.Controller) {
		c.Stream("/projects/:id/events", ctl.streamEvents)
	})
}

func (e *EventController) streamEvents(ctx *gin.Context, user *model.User) {
	projectID := ctx.Param("id")
	if _, apiErr := membership(ctx, e.store, projectID, user.ID); apiErr != nil {
		ctx.JSON(apiErr.Code, gin.H{"error": apiErr.Message})
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("project_id", projectID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	feed, unsubscribe := e.hub.Subscribe(projectID)
	defer unsubscribe()
	log.Info().Str("project_id", projectID).Str("user_id", user.ID).Msg("event stream connected")

	// the read loop only notices the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case ev, ok := <-feed:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Str("project_id", projectID).Msg("event stream write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			log.Info().Str("project_id", projectID).Str("user_id", user.ID).Msg("event stream disconnected")
			return
		}
	}
}
