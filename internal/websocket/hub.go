package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/reelty/clipper-api/internal/model"
)

const (
	// streamBuffer bounds the number of undelivered events held for a job
	// whose consumer has not attached yet
	streamBuffer = 256

	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Hub owns one progress stream per active job. Producers (service, pipeline
// worker) push events whether or not a consumer is attached; a consumer that
// attaches late receives the buffered backlog in original order.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]*stream
}

// stream is the per-job delivery queue. The events channel is the buffer;
// the writer goroutine of the attached connection is its only consumer.
type stream struct {
	projectID string
	events    chan model.Event
	closing   chan struct{}

	mu           sync.Mutex
	lastProgress int
	closed       bool
	attached     *connState
}

// connState tracks one consumer connection. Only its writer goroutine writes
// to the socket; the reader relays keepalive pings through the pong channel.
type connState struct {
	ws   *websocket.Conn
	pong chan struct{}
	done chan struct{}
	once sync.Once
}

func (c *connState) close() {
	c.once.Do(func() { close(c.done) })
}

func NewHub() *Hub {
	return &Hub{streams: make(map[string]*stream)}
}

// OpenStream creates the buffer for a job. Called at submission time so
// events emitted before the consumer connects are retained.
func (h *Hub) OpenStream(projectID string) {
	h.getOrCreate(projectID)
}

func (h *Hub) getOrCreate(projectID string) *stream {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.streams[projectID]; ok {
		return s
	}
	s := &stream{
		projectID: projectID,
		events:    make(chan model.Event, streamBuffer),
		closing:   make(chan struct{}),
	}
	h.streams[projectID] = s
	return s
}

func (h *Hub) lookup(projectID string) (*stream, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.streams[projectID]
	return s, ok
}

func (h *Hub) remove(projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.streams, projectID)
}

// Send queues an event on a job's stream. Never blocks the producer and never
// writes to the socket from the caller's stack; delivery happens on the
// attached connection's writer goroutine. Returns false when the stream is
// gone or already retired.
func (h *Hub) Send(projectID string, ev model.Event) bool {
	s, ok := h.lookup(projectID)
	if !ok {
		log.Printf("ws: no stream for project %s, dropping %s event", projectID, ev.Type)
		return false
	}
	return s.push(ev)
}

func (s *stream) push(ev model.Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	// Progress percentages are monotonically non-decreasing per stream
	if ev.Type == model.EventTypeProgress {
		if ev.Progress < s.lastProgress {
			ev.Progress = s.lastProgress
		}
		s.lastProgress = ev.Progress
	}
	s.mu.Unlock()

	select {
	case s.events <- ev:
		return true
	default:
	}
	// Buffer full: shed the oldest event to keep the newest
	select {
	case <-s.events:
	default:
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

// SendProgress queues a progress update for a job
func (h *Hub) SendProgress(projectID string, progress int, message string) bool {
	return h.Send(projectID, model.ProgressEvent(projectID, progress, message))
}

// SendResult queues the terminal success payload
func (h *Hub) SendResult(projectID string, result *model.GenerateResult) bool {
	return h.Send(projectID, model.ResultEvent(projectID, result))
}

// SendError queues a terminal failure with its classification code
func (h *Hub) SendError(projectID, code, message string) bool {
	return h.Send(projectID, model.ErrorEvent(projectID, code, message))
}

// SendCancelled queues the cancellation notice
func (h *Hub) SendCancelled(projectID string) bool {
	return h.Send(projectID, model.CancelledEvent(projectID))
}

// Retire marks a job's stream finished. An attached consumer still receives
// everything already queued; with no consumer the buffer is discarded.
func (h *Hub) Retire(projectID string) {
	s, ok := h.lookup(projectID)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	attached := s.attached
	s.mu.Unlock()
	close(s.closing)
	if attached == nil {
		h.remove(projectID)
	}
}

func (s *stream) attach(c *connState) {
	s.mu.Lock()
	prev := s.attached
	s.attached = c
	s.mu.Unlock()
	if prev != nil {
		prev.close()
	}
}

// detach clears the consumer slot if it still belongs to c. Buffering resumes
// transparently; nothing queued is lost by a disconnect alone.
func (s *stream) detach(c *connState) {
	s.mu.Lock()
	if s.attached == c {
		s.attached = nil
	}
	s.mu.Unlock()
	c.close()
}

func (s *stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// HandleConnection services one consumer connection for a job. Re-attach is
// idempotent: a newer connection replaces the previous one and buffered
// delivery continues on the new connection.
func (h *Hub) HandleConnection(c *websocket.Conn, projectID string) {
	s := h.getOrCreate(projectID)
	cs := &connState{
		ws:   c,
		pong: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	s.attach(cs)
	log.Printf("ws: consumer attached for project %s", projectID)

	// Connection confirmation goes out before any buffered replay
	if err := writeEvent(c, model.ConnectedEvent(projectID)); err != nil {
		s.detach(cs)
		return
	}

	go h.writeLoop(s, cs)

	// Reader loop: keeps the connection open and relays keepalive pings
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read error for project %s: %v", projectID, err)
			}
			break
		}
		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.EventTypePing {
			select {
			case cs.pong <- struct{}{}:
			default:
			}
		}
	}

	s.detach(cs)
	// A disconnect after retirement has nobody left to flush to
	if s.isClosed() {
		h.remove(projectID)
	}
	log.Printf("ws: consumer detached from project %s", projectID)
}

// writeLoop drains the job's queue onto one connection. A delivery failure
// terminates the loop and marks the connection detached; the stream itself is
// torn down only after the job retires and the backlog is flushed.
func (h *Hub) writeLoop(s *stream, cs *connState) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cs.done:
			return

		case ev := <-s.events:
			if err := writeEvent(cs.ws, ev); err != nil {
				log.Printf("ws: write failed for project %s: %v", s.projectID, err)
				s.detach(cs)
				return
			}

		case <-cs.pong:
			if err := writeEvent(cs.ws, model.Event{Type: model.EventTypePong}); err != nil {
				s.detach(cs)
				return
			}

		case <-ticker.C:
			cs.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cs.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.detach(cs)
				return
			}

		case <-s.closing:
			// Job retired: flush whatever is still queued, then shut down
			for {
				select {
				case ev := <-s.events:
					if err := writeEvent(cs.ws, ev); err != nil {
						s.detach(cs)
						h.remove(s.projectID)
						return
					}
				default:
					h.remove(s.projectID)
					cs.ws.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
					s.detach(cs)
					return
				}
			}
		}
	}
}

func writeEvent(c *websocket.Conn, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteMessage(websocket.TextMessage, data)
}
