package sync

import (
	"bufio"
	"context"
	"errors"
	"net"

	"go.uber.org/zap"
)

// Server accepts plain TCP clients that receive newline-delimited JSON
// events from the hub.
type Server struct {
	Addr string
	Hub  *Hub
	Log  *zap.Logger
}

func NewServer(addr string, hub *Hub, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{Addr: addr, Hub: hub, Log: log.With(zap.String("component", "tcp-sync"))}
}

// Run listens on Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.Log.Info("listening", zap.String("addr", ln.Addr().String()))
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.Log.Warn("accept failed", zap.Error(err))
			continue
		}

		s.Hub.Add(conn)
		s.Hub.Welcome(conn)
		s.Log.Info("client connected", zap.Stringer("addr", conn.RemoteAddr()))

		go s.handle(conn)
	}
}

func (s *Server) handle(c net.Conn) {
	defer func() {
		s.Hub.Remove(c)
		s.Log.Info("client disconnected", zap.Stringer("addr", c.RemoteAddr()))
	}()

	sc := bufio.NewScanner(c)
	for sc.Scan() {
		if userID, ok := parseSubscribe(sc.Bytes()); ok {
			s.Hub.Follow(c, userID)
			s.Log.Debug("client follows user", zap.String("user_id", userID))
		}
	}
}
