package registry

import (
	"log/slog"
	"sync"

	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/domain"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/metrics"
)

// --- Command types ---

type registryCmd interface{ registryCmd() }

type cmdRegister struct {
	conn  *domain.Connection
	errCh chan error
}

func (cmdRegister) registryCmd() {}

type cmdUnregister struct {
	localID uint64
	replyCh chan unregisterReply
}

func (cmdUnregister) registryCmd() {}

type unregisterReply struct {
	conn *domain.Connection
	err  error
}

type cmdSize struct {
	replyCh chan int
}

func (cmdSize) registryCmd() {}

type cmdFanOut struct {
	payload []byte
}

func (cmdFanOut) registryCmd() {}

type cmdCloseAll struct {
	replyCh chan int
}

func (cmdCloseAll) registryCmd() {}

type cmdStop struct{}

func (cmdStop) registryCmd() {}

// --- Registry ---

// Registry owns the connections held by this worker process. All state is
// confined to a single command loop, so no locking is needed: the map is only
// ever touched from the actor goroutine.
//
// onDead is invoked (on its own goroutine) for every connection the registry
// removes on its own initiative — failed sends and forced closes. The callback
// is responsible for the rest of the teardown, in particular removing the
// connection's global registry entry. Connections removed via Unregister are
// handed back to the caller instead, which keeps the global-leave obligation
// exactly-once: whoever removes the connection from the local map performs
// the leave.
type Registry struct {
	cmdCh   chan registryCmd
	conns   map[uint64]*domain.Connection
	onDead  func(*domain.Connection)
	dead    sync.WaitGroup
	metrics *metrics.WebSocketMetrics
}

// New creates a registry and starts its command loop. wsMetrics may be nil.
func New(onDead func(*domain.Connection), wsMetrics *metrics.WebSocketMetrics) *Registry {
	r := &Registry{
		cmdCh:   make(chan registryCmd, 256),
		conns:   make(map[uint64]*domain.Connection),
		onDead:  onDead,
		metrics: wsMetrics,
	}
	go r.run()
	return r
}

func (r *Registry) run() {
	for cmd := range r.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			c.errCh <- r.handleRegister(c.conn)
		case cmdUnregister:
			c.replyCh <- r.handleUnregister(c.localID)
		case cmdSize:
			c.replyCh <- len(r.conns)
		case cmdFanOut:
			r.handleFanOut(c.payload)
		case cmdCloseAll:
			c.replyCh <- r.handleCloseAll()
		case cmdStop:
			r.handleStop()
			return
		}
	}
}

func (r *Registry) handleRegister(conn *domain.Connection) error {
	if _, exists := r.conns[conn.LocalID]; exists {
		return domain.ErrAlreadyRegistered
	}
	conn.State = domain.StateOpen
	r.conns[conn.LocalID] = conn
	if r.metrics != nil {
		r.metrics.ActiveConnections.Inc()
	}
	slog.Debug("Connection registered", "conn_id", conn.GlobalID, "local", len(r.conns))
	return nil
}

func (r *Registry) handleUnregister(localID uint64) unregisterReply {
	conn, exists := r.conns[localID]
	if !exists {
		return unregisterReply{err: domain.ErrNotFound}
	}
	r.remove(conn)
	return unregisterReply{conn: conn}
}

// remove takes a connection out of the local map and closes its sender.
// It does not touch the global registry; that is the remover's obligation.
func (r *Registry) remove(conn *domain.Connection) {
	conn.State = domain.StateClosed
	_ = conn.Sender.Close()
	delete(r.conns, conn.LocalID)
	if r.metrics != nil {
		r.metrics.ActiveConnections.Dec()
	}
}

func (r *Registry) handleFanOut(payload []byte) {
	var dead []*domain.Connection
	for _, conn := range r.conns {
		if err := conn.Sender.Send(payload); err != nil {
			slog.Warn("Send to local connection failed, scheduling teardown",
				"conn_id", conn.GlobalID, "error", err)
			if r.metrics != nil {
				r.metrics.SendFailures.Inc()
			}
			conn.State = domain.StateClosing
			dead = append(dead, conn)
			continue
		}
		if r.metrics != nil {
			r.metrics.MessagesDelivered.Inc()
		}
	}

	for _, conn := range dead {
		r.remove(conn)
		r.notifyDead(conn)
	}
}

func (r *Registry) handleCloseAll() int {
	closed := 0
	for _, conn := range r.conns {
		r.remove(conn)
		r.notifyDead(conn)
		closed++
	}
	return closed
}

// notifyDead runs the dead-connection callback on its own goroutine, tracked
// so CloseAll can wait for all pending callbacks before returning.
func (r *Registry) notifyDead(conn *domain.Connection) {
	if r.onDead == nil {
		return
	}
	r.dead.Add(1)
	go func() {
		defer r.dead.Done()
		r.onDead(conn)
	}()
}

func (r *Registry) handleStop() {
	for _, conn := range r.conns {
		r.remove(conn)
	}
}

// --- Public API ---

// Register adds a connection keyed by its process-local id.
func (r *Registry) Register(conn *domain.Connection) error {
	errCh := make(chan error, 1)
	r.cmdCh <- cmdRegister{conn: conn, errCh: errCh}
	return <-errCh
}

// Unregister removes the connection and returns ownership of it for teardown.
// Returns domain.ErrNotFound if the registry no longer holds the id, which a
// racing forced-close path treats as "already torn down".
func (r *Registry) Unregister(localID uint64) (*domain.Connection, error) {
	replyCh := make(chan unregisterReply, 1)
	r.cmdCh <- cmdUnregister{localID: localID, replyCh: replyCh}
	reply := <-replyCh
	return reply.conn, reply.err
}

// Size returns the number of open connections in this worker.
func (r *Registry) Size() int {
	replyCh := make(chan int, 1)
	r.cmdCh <- cmdSize{replyCh: replyCh}
	return <-replyCh
}

// FanOut delivers payload to every open local connection. A failed send to
// one connection never aborts delivery to the rest; the failing connection is
// removed and handed to the onDead callback.
func (r *Registry) FanOut(payload []byte) {
	r.cmdCh <- cmdFanOut{payload: payload}
}

// CloseAll forcibly tears down every remaining connection through the normal
// removal path and reports how many were closed. It blocks until all pending
// dead-connection callbacks have finished, so the global registry entries of
// force-closed connections are removed before forced shutdown proceeds.
func (r *Registry) CloseAll() int {
	replyCh := make(chan int, 1)
	r.cmdCh <- cmdCloseAll{replyCh: replyCh}
	closed := <-replyCh
	r.dead.Wait()
	return closed
}

// Stop terminates the command loop and closes any remaining senders without
// invoking onDead. Intended for process teardown after draining.
func (r *Registry) Stop() {
	r.cmdCh <- cmdStop{}
}
