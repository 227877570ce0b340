// Package server exposes the monitor over HTTP: a status page, a JSON
// snapshot of the current picks and a WebSocket feed of every cycle.
package server

import (
	"embed"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"nasfaqv2/brokerbot/ytmonitor/internal/monitor"
)

//go:embed templates/*.html
var templatesFS embed.FS

// StateSource is the read side of the monitor.
type StateSource interface {
	Streams() map[string]monitor.ChannelState
	Running() bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Server struct {
	hub    *Hub
	state  StateSource
	router *gin.Engine

	Title string
	Now   func() time.Time
}

func New(state StateSource, hub *Hub) *Server {
	s := &Server{
		hub:   hub,
		state: state,
		Title: "YouTube Monitor",
		Now:   time.Now,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	r.GET("/", s.index)
	r.GET("/health", s.health)
	r.GET("/api/streams", s.streams)
	r.GET("/ws", s.serveWS)

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{"Title": s.Title})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"timestamp":         s.Now().UTC().Format(time.RFC3339Nano),
		"connected_clients": s.hub.Count(),
		"manager_running":   s.state.Running(),
	})
}

func (s *Server) streams(c *gin.Context) {
	c.JSON(http.StatusOK, s.state.Streams())
}

func (s *Server) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	client := NewClient(s.hub, conn)
	if !s.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
