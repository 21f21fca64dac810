package server

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 16
	writeTimeout   = 5 * time.Second
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

// connWriter is the send capability for one WebSocket connection. A single
// writer goroutine serializes all writes (gorilla/websocket allows only one
// concurrent writer), so the echo path and the broadcast fan-out can both
// send without coordination. Send never blocks: a full buffer means the
// client is too slow and the connection is reported dead.
type connWriter struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
}

func newConnWriter(conn *websocket.Conn) *connWriter {
	w := &connWriter{
		conn:   conn,
		sendCh: make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *connWriter) run() {
	for {
		select {
		case msg := <-w.sendCh:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				w.stop()
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *connWriter) Send(payload []byte) error {
	select {
	case <-w.done:
		return errConnClosed
	default:
	}

	select {
	case w.sendCh <- payload:
		return nil
	case <-w.done:
		return errConnClosed
	default:
		return errSendBufferFull
	}
}

func (w *connWriter) Close() error {
	w.stop()
	return nil
}

func (w *connWriter) stop() {
	w.once.Do(func() {
		close(w.done)
		_ = w.conn.Close()
	})
}
