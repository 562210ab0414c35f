package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	ws "github.com/stemsi/exstem-quiz/internal/websocket"
)

const wsActionTimeout = 15 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a student's session over a WebSocket.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/session/stream
// Pushes state, tick and completed events of the student's session and
// accepts select, advance, retreat and ping actions.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	studentID := claims.UserID

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Int("student_id", studentID).Logger()
	wsLog.Info().Msg("Student connected")

	updates, cancel := h.sessionService.Subscribe(studentID)
	defer cancel()

	send := make(chan interface{}, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches the connection for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := ws.WriteTyped(conn, msg); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed")
				return
			}
		}
	}()

	push := func(msg interface{}) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case e, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- ws.FromSessionEvent(e):
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if snap, err := h.sessionService.Current(context.Background(), studentID); err == nil {
		push(ws.SessionResponse{Event: ws.EventState, Session: snap})
	} else {
		push(wsError(err))
	}

	for {
		raw, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			push(ws.NewError(string(response.ErrInvalidPayload), "invalid message"))
			continue
		}

		if reply := h.handleAction(studentID, env.Action, raw); reply != nil {
			push(reply)
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	wsLog.Info().Msg("Student disconnected")
}

// handleAction runs one client action. State changes reach the client
// through the subscription, so only errors and pongs are returned.
func (h *WSHandler) handleAction(studentID int, action ws.Action, raw []byte) interface{} {
	ctx, cancel := context.WithTimeout(context.Background(), wsActionTimeout)
	defer cancel()

	var err error
	switch action {
	case ws.ActionPing:
		return ws.PongResponse{Event: ws.EventPong}
	case ws.ActionSelect:
		var req ws.SelectRequest
		if jsonErr := json.Unmarshal(raw, &req); jsonErr != nil || req.Choice == nil {
			return ws.NewError(string(response.ErrInvalidPayload), "choice is required")
		}
		_, err = h.sessionService.Select(studentID, *req.Choice)
	case ws.ActionAdvance:
		_, err = h.sessionService.Advance(ctx, studentID)
	case ws.ActionRetreat:
		_, err = h.sessionService.Retreat(studentID)
	default:
		h.log.Warn().Str("action", string(action)).Msg("Unknown action")
		return ws.NewError(string(response.ErrInvalidPayload), "unknown action: "+string(action))
	}

	if err != nil {
		return wsError(err)
	}
	return nil
}

func wsError(err error) ws.ErrorResponse {
	_, code := sessionErrorCode(err)
	return ws.NewError(string(code), response.GetMessage(code))
}
