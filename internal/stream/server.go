// Package stream broadcasts the profiler's diagnostic events to WebSocket
// subscribers, giving dashboards a live view without polling reports.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/alejoacosta74/profiler/internal/common"
	"github.com/alejoacosta74/profiler/internal/events"
)

// Frame is the wire form of one diagnostic event pushed to subscribers.
type Frame struct {
	Topic     string      `json:"topic"`
	Timestamp time.Time   `json:"timestamp"`
	Event     interface{} `json:"event"`
}

// ServerConfig configures the diagnostics stream server.
type ServerConfig struct {
	Addr   string
	Bus    events.Bus
	Logger *logrus.Logger
}

// Server accepts WebSocket connections on /ws and pushes every diagnostic
// event to all connected subscribers. A subscriber whose send buffer fills
// up is disconnected rather than allowed to stall the broadcast.
type Server struct {
	addr     string
	bus      events.Bus
	upgrader websocket.Upgrader
	server   *http.Server

	mu      sync.Mutex
	clients map[*client]struct{}

	logger *logrus.Entry
	done   chan struct{}
}

// NewServer creates a diagnostics stream server listening on config.Addr.
func NewServer(config ServerConfig) *Server {
	log := config.Logger
	if log == nil {
		log = logrus.New()
	}
	s := &Server{
		addr: config.Addr,
		bus:  config.Bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
		logger:  log.WithField("component", "stream_server"),
		done:    make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleSubscriber)
	s.server = &http.Server{Addr: config.Addr, Handler: mux}
	return s
}

// Run serves subscribers and forwards bus events until ctx is cancelled.
// It blocks like http.Server.ListenAndServe does.
func (s *Server) Run(ctx context.Context) error {
	defer close(s.done)

	broadcastCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.broadcastLoop(broadcastCtx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Error("Error shutting down stream server")
		}
	}()

	s.logger.WithField("addr", s.addr).Info("Diagnostics stream server listening")
	err := s.server.ListenAndServe()
	s.closeAllClients()
	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

// closeAllClients disconnects every subscriber, ending their write pumps.
func (s *Server) closeAllClients() {
	s.mu.Lock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
}

// Done is closed once Run has returned.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Handler exposes the subscriber endpoint for embedding in an existing mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleSubscriber)
	return mux
}

// SubscriberCount returns the number of connected subscribers.
func (s *Server) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleSubscriber(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, 64),
		logger: s.logger.WithField("remote", conn.RemoteAddr().String()),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	c.logger.Debug("Subscriber connected")

	go c.writePump()
	go c.readPump(func() { s.removeClient(c) })
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
	c.logger.Debug("Subscriber disconnected")
}

// broadcastLoop subscribes to every diagnostic topic and fans published
// events out to all connected subscribers.
func (s *Server) broadcastLoop(ctx context.Context) {
	type subscription struct {
		topic common.EventType
		ch    <-chan interface{}
	}

	var subs []subscription
	for _, topic := range common.Topics() {
		subs = append(subs, subscription{topic: topic, ch: s.bus.Subscribe(topic)})
	}
	defer func() {
		for _, sub := range subs {
			s.bus.Unsubscribe(sub.topic, sub.ch)
		}
	}()

	frames := make(chan Frame, 64)
	for _, sub := range subs {
		go func(topic common.EventType, ch <-chan interface{}) {
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-ch:
					if !ok {
						return
					}
					select {
					case frames <- Frame{Topic: string(topic), Timestamp: time.Now(), Event: event}:
					default:
						s.logger.WithField("topic", topic).Warn("Broadcast backlog full, dropping event")
					}
				}
			}
		}(sub.topic, sub.ch)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-frames:
			s.broadcast(frame)
		}
	}
}

func (s *Server) broadcast(frame Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		s.logger.WithError(err).WithField("topic", frame.Topic).Error("Failed to encode frame")
		return
	}

	s.mu.Lock()
	var stalled []*client
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			stalled = append(stalled, c)
		}
	}
	s.mu.Unlock()

	// disconnect subscribers that cannot keep up
	for _, c := range stalled {
		s.removeClient(c)
	}
}
