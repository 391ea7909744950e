// Package ws serves the game over websockets: a WELCOME on connect, STATE
// pushes on every change and on the refresh cadence, and an ACK per ACT.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tycoon.ai/internal/clock"
	"tycoon.ai/internal/protocol"
	"tycoon.ai/internal/sim/catalogs"
	"tycoon.ai/internal/sim/game"
)

type Engine interface {
	Do(ctx context.Context, a game.Action) (game.Result, error)
	View() game.State
	Subscribe() (<-chan struct{}, func())
	Catalogs() *catalogs.Catalogs
}

// Hooks receive per-connection events. Options.Hooks may be nil.
type Hooks interface {
	ObserveAct(action, code string)
	ClientConnected()
	ClientDisconnected()
}

type Options struct {
	TickMs           int
	RefreshMs        int
	ActionsPerSecond float64
	Burst            int
	Clock            clock.Clock
	Hooks            Hooks
}

type Server struct {
	eng  Engine
	opts Options
	log  *zap.Logger

	upgrader websocket.Upgrader
}

func NewServer(eng Engine, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.RefreshMs <= 0 {
		opts.RefreshMs = 100
	}
	if opts.ActionsPerSecond <= 0 {
		opts.ActionsPerSecond = 20
	}
	if opts.Burst <= 0 {
		opts.Burst = 40
	}
	return &Server{
		eng:  eng,
		opts: opts,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// StateHandler serves the current STATE as JSON.
func (s *Server) StateHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		msg := game.BuildStateMsg(s.eng.Catalogs(), s.eng.View(), s.opts.Clock.Now())
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(msg)
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID := uuid.NewString()
		log := s.log.With(zap.String("session", sessionID))
		log.Info("client connected", zap.String("remote", r.RemoteAddr))
		if s.opts.Hooks != nil {
			s.opts.Hooks.ClientConnected()
			defer s.opts.Hooks.ClientDisconnected()
		}

		welcome := protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       sessionID,
			TickMs:          s.opts.TickMs,
			RefreshMs:       s.opts.RefreshMs,
			Catalog:         game.WelcomeCatalog(s.eng.Catalogs()),
		}
		if err := writeJSON(conn, welcome); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		// A writer failure cancels ctx; closing conn unblocks ReadMessage.
		go func() {
			<-ctx.Done()
			_ = conn.Close()
		}()

		notify, unsubscribe := s.eng.Subscribe()
		defer unsubscribe()

		out := make(chan []byte, 16)

		// Writer goroutine. It is the only goroutine that writes to conn.
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.writeLoop(ctx, cancel, conn, out, notify)
		}()

		// Reader loop.
		limiter := rate.NewLimiter(rate.Limit(s.opts.ActionsPerSecond), s.opts.Burst)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			ack := s.handleMessage(ctx, limiter, msg)
			b, err := json.Marshal(ack)
			if err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		cancel()
		<-done
		log.Info("client disconnected")
	}
}

func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan []byte, notify <-chan struct{}) {
	refresh := time.NewTicker(time.Duration(s.opts.RefreshMs) * time.Millisecond)
	defer refresh.Stop()

	if err := s.pushState(conn); err != nil {
		cancel()
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-out:
			if err := writeRaw(conn, b); err != nil {
				cancel()
				return
			}
		case _, ok := <-notify:
			if !ok {
				cancel()
				return
			}
			if err := s.pushState(conn); err != nil {
				cancel()
				return
			}
		case <-refresh.C:
			if !anyWorking(s.eng.View()) {
				continue
			}
			if err := s.pushState(conn); err != nil {
				cancel()
				return
			}
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, limiter *rate.Limiter, msg []byte) protocol.AckMsg {
	ack := protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeAct {
		ack.Code = protocol.ErrProtoBadRequest
		ack.Message = "expected ACT"
		return ack
	}
	if base.ProtocolVersion != protocol.Version {
		ack.Code = protocol.ErrProtoBadRequest
		ack.Message = "bad protocol_version"
		return ack
	}
	var act protocol.ActMsg
	_ = json.Unmarshal(msg, &act)
	ack.AckFor = act.ID
	if err := protocol.ValidateAct(msg); err != nil {
		ack.Code = protocol.ErrProtoBadRequest
		ack.Message = err.Error()
		s.observe(act.Action, ack.Code)
		return ack
	}
	if !limiter.Allow() {
		ack.Code = protocol.ErrRateLimit
		ack.Message = "too many actions"
		s.observe(act.Action, ack.Code)
		return ack
	}

	res, err := s.eng.Do(ctx, game.Action{
		Kind:       act.Action,
		BusinessID: act.BusinessID,
		ManagerID:  act.ManagerID,
		Step:       act.Step,
	})
	switch {
	case err != nil:
		ack.Code = protocol.ErrInternal
		ack.Message = err.Error()
	case res.Err != nil:
		ack.Code = game.ErrorCode(res.Err)
		ack.Message = res.Err.Error()
	default:
		ack.Accepted = true
		ack.Collected = res.Collected
	}
	s.observe(act.Action, ack.Code)
	return ack
}

func (s *Server) observe(action, code string) {
	if s.opts.Hooks != nil {
		s.opts.Hooks.ObserveAct(action, code)
	}
}

func (s *Server) pushState(conn *websocket.Conn) error {
	return writeJSON(conn, game.BuildStateMsg(s.eng.Catalogs(), s.eng.View(), s.opts.Clock.Now()))
}

func anyWorking(st game.State) bool {
	for _, b := range st.Businesses {
		if b.IsWorking {
			return true
		}
	}
	return false
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeRaw(conn, b)
}

func writeRaw(conn *websocket.Conn, b []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
