package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"agent-navigator/pathservice"
)

const writeWait = 10 * time.Second

type messageType string

const (
	messageIDs    messageType = "ids"
	messageResult messageType = "result"
	messageError  messageType = "error"
)

// streamMessage is sent from the server to a stream client.
type streamMessage struct {
	Type   messageType             `json:"type"`
	IDs    []pathservice.RequestID `json:"ids,omitempty"`
	Result *pathservice.Result     `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// GET /paths/stream - websocket. Each client message is a SubmitRequest; the
// server answers with the assigned ids and then pushes every result as it
// completes.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()

	sub := newSubscriber()
	var writer conc.WaitGroup
	writer.Go(func() { s.writeLoop(conn, sub) })

	defer func() {
		s.router.release(sub)
		writer.Wait()

		s.connsMu.Lock()
		delete(s.conns, conn)
		s.connsMu.Unlock()
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req SubmitRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			s.logger.Debug("discarding malformed stream message", zap.Error(err))
			s.sendError(sub, "invalid message")
			continue
		}
		if len(req.Queries) > maxBatch {
			s.sendError(sub, "too many queries")
			continue
		}

		if _, err := s.router.submit(sub, req.Queries); err != nil {
			s.sendError(sub, err.Error())
			return
		}
	}
}

func (s *Server) sendError(sub *subscriber, text string) {
	if err := sub.outbox.Push(streamMessage{Type: messageError, Error: text}); err != nil {
		s.logger.Debug("stream closed before error was sent", zap.String("message", text), zap.Error(err))
	}
}

// writeLoop sends queued messages until the outbox is closed and drained.
func (s *Server) writeLoop(conn *websocket.Conn, sub *subscriber) {
	for {
		msg, ok := sub.outbox.Pop()
		if !ok {
			return
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Debug("stream write failed", zap.Error(err))
			// unblocks the reader, which releases the subscriber
			conn.Close()
			for {
				if _, ok := sub.outbox.Pop(); !ok {
					return
				}
			}
		}
	}
}
