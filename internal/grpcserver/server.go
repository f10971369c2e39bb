package grpcserver

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gamevault/internal/auth"
	"gamevault/internal/library"
	"gamevault/internal/sync"
)

// Server serves the cloud library from the same repository as the HTTP API.
type Server struct {
	LibraryRepo *library.Repo
	Events      *library.Notifier
}

func NewServer(repo *library.Repo, events *library.Notifier) *Server {
	return &Server{LibraryRepo: repo, Events: events}
}

// NewGRPCServer wires the library service behind recovery, logging and auth
// interceptors.
func NewGRPCServer(svc *Server, tokens auth.TokenService, users *auth.Repo, log *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "grpc"))
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(log),
			LoggingInterceptor(log),
			AuthInterceptor(tokens, users),
		),
	}, opts...)
	srv := grpc.NewServer(opts...)
	RegisterLibraryServiceServer(srv, svc)
	return srv
}

func userID(ctx context.Context) (string, error) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return p.UserID, nil
}

func (s *Server) ListGames(ctx context.Context, req *ListGamesRequest) (*ListGamesResponse, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, status.Error(codes.InvalidArgument, "invalid status filter")
	}

	games, err := s.LibraryRepo.List(ctx, uid, req.Status)
	if err != nil {
		return nil, status.Error(codes.Internal, "list failed")
	}
	return &ListGamesResponse{Total: len(games), Games: games}, nil
}

func (s *Server) GetGame(ctx context.Context, req *GetGameRequest) (*GameResponse, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	if req.GameID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "game_id required")
	}

	g, err := s.LibraryRepo.Get(ctx, uid, req.GameID)
	if err != nil {
		return nil, status.Error(codes.Internal, "get failed")
	}
	if g == nil {
		return nil, status.Error(codes.NotFound, "not found")
	}
	return &GameResponse{Game: *g}, nil
}

func (s *Server) PutGame(ctx context.Context, req *PutGameRequest) (*GameResponse, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	if req.Game.GameID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "game.gameId required")
	}
	if req.Game.Status != "" && !req.Game.Status.Valid() {
		return nil, status.Error(codes.InvalidArgument, "invalid status")
	}

	if err := s.LibraryRepo.Upsert(ctx, uid, req.Game); err != nil {
		return nil, status.Error(codes.Internal, "save failed")
	}
	saved, err := s.LibraryRepo.Get(ctx, uid, req.Game.GameID)
	if err != nil {
		return nil, status.Error(codes.Internal, "fetch failed")
	}
	if saved == nil {
		return nil, status.Error(codes.Internal, "saved game not found")
	}

	s.Events.Notify(ctx, sync.UpdatedEvent(uid, *saved))
	return &GameResponse{Game: *saved}, nil
}

func (s *Server) DeleteGame(ctx context.Context, req *DeleteGameRequest) (*DeleteGameResponse, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	if req.GameID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "game_id required")
	}

	deleted, err := s.LibraryRepo.Delete(ctx, uid, req.GameID)
	if err != nil {
		return nil, status.Error(codes.Internal, "delete failed")
	}
	if !deleted {
		return nil, status.Error(codes.NotFound, "not found")
	}

	s.Events.Notify(ctx, sync.DeletedEvent(uid, req.GameID))
	return &DeleteGameResponse{Deleted: true}, nil
}
