package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/NethermindEth/masp/communication"
	"github.com/NethermindEth/masp/logger"
)

const EventSnapshot = "SNAPSHOT"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// HandleWebSocket sends the current feed and leaderboard, then streams
// every event appended to the feed log until the client disconnects.
func (s *Server) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error("websocket upgrade", "%v", err)
		return
	}
	defer conn.Close()
	s.log.Debug(logger.SYSTEM, "websocket connected from %s", c.ClientIP())

	var writeMu sync.Mutex
	send := func(v any) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(v); err != nil {
			s.log.Debug(logger.SYSTEM, "websocket write: %v", err)
		}
	}

	snapshot, err := communication.NewEvent(EventSnapshot, gin.H{
		"feed":        s.engine.Feed(50),
		"leaderboard": s.engine.Leaderboard(),
		"state":       s.engine.State(),
	})
	if err != nil {
		s.log.Error("websocket snapshot", "%v", err)
		return
	}
	send(snapshot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if s.opts.FeedLog != "" {
		go func() {
			if err := communication.WatchFeedLog(ctx, s.opts.FeedLog, s.log, func(ev communication.Event) { send(ev) }); err != nil {
				s.log.Error("websocket feed watcher", "%v", err)
			}
		}()
	}

	// Keep connection alive and handle disconnection
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.log.Debug(logger.SYSTEM, "websocket closed: %v", err)
			return
		}
	}
}
