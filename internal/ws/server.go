// Package ws handles WebSocket connection management: upgrading HTTP
// connections, tracking active sessions, and feeding incoming frames to the
// message dispatcher. It also serves the HTTP introspection endpoints
// (/health, /status, /metrics) on the same listener.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/mtsl/pairchat/internal/coordinator"
	"github.com/mtsl/pairchat/internal/metrics"
	"github.com/mtsl/pairchat/internal/presence"
	"github.com/mtsl/pairchat/internal/protocol"
	"github.com/mtsl/pairchat/internal/ratelimit"
)

// ServerConfig holds tunable parameters for the WebSocket server.
type ServerConfig struct {
	ListenAddr     string        // address to listen on, e.g. ":8080"
	WorkerPoolSize int           // max concurrent read-worker goroutines
	MaxConnections int           // hard cap on total connections
	ReadTimeout    time.Duration // timeout for WebSocket read operations
	WriteTimeout   time.Duration // timeout for WebSocket write operations
}

// DefaultServerConfig returns a ServerConfig with production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:     ":8080",
		WorkerPoolSize: 256,
		MaxConnections: 100000,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// Server is the WebSocket server built on gobwas/ws and Linux epoll. It
// upgrades HTTP connections, registers them with an epoll instance for I/O
// readiness, and dispatches ready connections to a bounded worker pool for
// frame reading. Delivery to sessions goes through Send, which makes the
// server the coordinator's outbound transport.
type Server struct {
	config       ServerConfig
	epoll        *Epoll
	conns        *ConnectionManager
	presence     *presence.Store                     // advisory Redis session mirror, may be nil
	connLimiter  *ratelimit.Limiter                  // per-IP connection limiter, may be nil
	snapshotFn   func() coordinator.Snapshot         // status endpoint source, may be nil
	workerPool   chan struct{}                       // semaphore limiting concurrent read workers
	onMessage    func(conn *Connection, data []byte) // message handler callback
	onDisconnect func(connID string)                 // called when a connection is removed
	httpServer   *http.Server
	done         chan struct{}
	startedAt    time.Time
}

// NewServer creates a Server with the given configuration and message
// callback. The onMessage function is called from a worker goroutine whenever
// a complete WebSocket text frame is received from a client.
func NewServer(config ServerConfig, onMessage func(conn *Connection, data []byte)) *Server {
	return &Server{
		config:     config,
		conns:      NewConnectionManager(),
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		onMessage:  onMessage,
		done:       make(chan struct{}),
	}
}

// SetPresenceStore attaches the Redis session mirror. Presence writes are
// advisory: failures are logged and never affect pairing or relay.
func (s *Server) SetPresenceStore(store *presence.Store) {
	s.presence = store
}

// SetConnectLimiter attaches a per-IP rate limiter applied before the
// WebSocket upgrade.
func (s *Server) SetConnectLimiter(l *ratelimit.Limiter) {
	s.connLimiter = l
}

// SetSnapshotFunc attaches the coordinator state source for /status.
func (s *Server) SetSnapshotFunc(fn func() coordinator.Snapshot) {
	s.snapshotFn = fn
}

// SetOnDisconnect registers a callback invoked when a connection is removed
// (read error, heartbeat timeout, or graceful close). It is called before the
// presence record is deleted.
func (s *Server) SetOnDisconnect(fn func(connID string)) {
	s.onDisconnect = fn
}

// Start initializes the epoll instance, configures the HTTP server, and
// begins accepting WebSocket connections. It starts the epoll event loop in
// a background goroutine and blocks on http.Server.ListenAndServe.
func (s *Server) Start() error {
	var err error
	s.epoll, err = NewEpoll()
	if err != nil {
		return fmt.Errorf("ws: failed to create epoll: %w", err)
	}

	s.startedAt = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: mux,
	}

	go s.startEventLoop()

	StartHeartbeat(s, DefaultHeartbeatConfig())

	log.Printf("[ws] server listening on %s (workers=%d, max_conns=%d)",
		s.config.ListenAddr, s.config.WorkerPoolSize, s.config.MaxConnections)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ws: http server error: %w", err)
	}
	return nil
}

// handleUpgrade upgrades an HTTP request to a WebSocket connection. On
// success it creates a Connection, registers it with the connection manager
// and epoll, mirrors the session to Redis, and sends session_created.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	ip := remoteIP(r)
	if s.connLimiter != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		allowed, err := s.connLimiter.Allow(ctx, ip, ratelimit.RuleConnect)
		cancel()
		if err == nil && !allowed {
			http.Error(w, "connection rate exceeded", http.StatusTooManyRequests)
			return
		}
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("[ws] upgrade failed from %s: %v", ip, err)
		return
	}

	fd := socketFD(conn)
	sessionID := uuid.New().String()

	c := &Connection{
		ID:         sessionID,
		Conn:       conn,
		Fd:         fd,
		RemoteIP:   ip,
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}

	s.conns.Add(c)
	if err := s.epoll.Add(conn); err != nil {
		log.Printf("[ws] epoll add failed for session %s: %v", sessionID, err)
		s.conns.Remove(sessionID)
		return
	}
	metrics.ConnectionsTotal.Inc()

	if s.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := s.presence.Create(ctx, sessionID); err != nil {
			log.Printf("[ws] presence create failed for session %s: %v", sessionID, err)
		}
		cancel()
	}

	sessionMsg, err := protocol.NewServerMessage(protocol.TypeSessionCreated, protocol.SessionCreatedMsg{
		SessionID: sessionID,
	})
	if err != nil {
		log.Printf("[ws] build session_created for session %s: %v", sessionID, err)
	} else if err := c.WriteMessage(sessionMsg); err != nil {
		log.Printf("[ws] send session_created for session %s: %v", sessionID, err)
	}

	log.Printf("[ws] new connection session=%s fd=%d (total=%d)", sessionID, fd, s.conns.Count())
}

// handleHealth responds with the server's health status as JSON, including
// the connection count and uptime. Used by load balancer health checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Uptime      string `json:"uptime"`
	}{
		Status:      "ok",
		Connections: s.conns.Count(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// startEventLoop runs the epoll wait loop. Each batch of ready connections is
// dispatched to worker goroutines bounded by the worker pool semaphore.
func (s *Server) startEventLoop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		conns, err := s.epoll.Wait()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				// EINTR is expected during signal handling.
				if isEINTR(err) {
					continue
				}
				log.Printf("[ws] epoll wait error: %v", err)
				continue
			}
		}

		for _, conn := range conns {
			conn := conn

			s.workerPool <- struct{}{}

			go func() {
				defer func() { <-s.workerPool }()
				s.handleConn(conn)
			}()
		}
	}
}

// handleConn reads a single WebSocket frame from a ready connection using
// wsutil.NextReader so control frames are handled without blocking on a data
// frame that may never arrive. A failed read removes the connection.
func (s *Server) handleConn(netConn net.Conn) {
	c := s.conns.GetByConn(netConn)
	if c == nil {
		return
	}

	// Guard against duplicate dispatch from level-triggered epoll.
	if !atomic.CompareAndSwapInt32(&c.processing, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&c.processing, 0)

	if s.config.ReadTimeout > 0 {
		_ = netConn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}

	header, reader, err := wsutil.NextReader(netConn, ws.StateServerSide)
	if err != nil {
		// A read timeout means no data was available (stale epoll dispatch).
		// The heartbeat handles genuinely dead connections.
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return
		}
		s.RemoveConnection(c)
		return
	}

	_ = netConn.SetReadDeadline(time.Time{})

	// Any frame proves the connection is alive.
	c.LastActive = time.Now()

	if header.OpCode.IsControl() {
		if header.OpCode == ws.OpClose {
			s.RemoveConnection(c)
		}
		return
	}

	data := make([]byte, header.Length)
	if header.Length > 0 {
		if _, err := io.ReadFull(reader, data); err != nil {
			s.RemoveConnection(c)
			return
		}
	}

	if len(data) == 0 {
		return
	}

	if s.onMessage != nil {
		s.onMessage(c, data)
	}
}

// RemoveConnection removes a connection from both epoll and the connection
// manager and closes the underlying network connection. Exported so the
// heartbeat monitor can evict dead connections.
func (s *Server) RemoveConnection(c *Connection) {
	_ = s.epoll.Remove(c.Conn)

	// Only proceed if the connection was actually in the manager, so
	// concurrent removals (read error racing a heartbeat timeout) clean
	// up once.
	if !s.conns.Remove(c.ID) {
		return
	}
	metrics.ConnectionsTotal.Dec()

	// Notify the application layer before deleting the presence record.
	if s.onDisconnect != nil {
		s.onDisconnect(c.ID)
	}

	if s.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := s.presence.Delete(ctx, c.ID); err != nil {
			log.Printf("[ws] presence delete failed for session %s: %v", c.ID, err)
		}
		cancel()
	}

	log.Printf("[ws] connection closed session=%s (total=%d)", c.ID, s.conns.Count())
}

// Send writes a WebSocket text frame to the session identified by sessionID.
// It satisfies the coordinator's outbound transport interface and is
// goroutine-safe thanks to the per-connection write mutex.
func (s *Server) Send(sessionID string, data []byte) error {
	c := s.conns.Get(sessionID)
	if c == nil {
		return fmt.Errorf("ws: connection %s not found", sessionID)
	}

	if s.config.WriteTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}

	err := c.WriteMessage(data)

	// Clear the write deadline so it doesn't affect heartbeat pings.
	_ = c.Conn.SetWriteDeadline(time.Time{})

	return err
}

// Connections returns the ConnectionManager for external access to
// connection state.
func (s *Server) Connections() *ConnectionManager {
	return s.conns
}

// Shutdown performs a graceful shutdown: stops the HTTP listener, signals
// the event loop to exit, closes all active connections, and cleans up the
// epoll instance.
func (s *Server) Shutdown() error {
	log.Println("[ws] shutting down server...")

	close(s.done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("[ws] http shutdown error: %v", err)
	}

	for _, c := range s.conns.All() {
		if s.presence != nil {
			delCtx, delCancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = s.presence.Delete(delCtx, c.ID)
			delCancel()
		}
		_ = s.epoll.Remove(c.Conn)
		c.Close()
	}

	if s.epoll != nil {
		_ = s.epoll.Close()
	}

	log.Printf("[ws] server stopped, all connections closed")
	return nil
}

// remoteIP extracts the client IP from a request, preferring the
// X-Forwarded-For header set by the load balancer.
func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// isEINTR checks if the error is an interrupted syscall (EINTR), which is
// expected during signal handling and should be retried.
func isEINTR(err error) bool {
	if err == nil {
		return false
	}
	return err.Error() == "interrupted system call" ||
		err.Error() == "errno 4"
}
