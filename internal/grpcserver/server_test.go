package grpcserver

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"gamevault/internal/auth"
	"gamevault/internal/library"
	"gamevault/pkg/database"
	"gamevault/pkg/models"
)

type env struct {
	client *LibraryServiceClient
	users  *auth.Repo
	tokens auth.TokenService
	token  string
}

func setup(t *testing.T) *env {
	t.Helper()
	db, err := database.OpenAndMigrate(database.Config{Path: filepath.Join(t.TempDir(), "server.db")}, database.SchemaServer)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := auth.NewRepo(db)
	u := auth.User{ID: "u1", Username: "ada", Email: "ada@example.com", PasswordHash: "x"}
	require.NoError(t, users.CreateUser(context.Background(), u))
	tokens := auth.TokenService{Secret: []byte("test"), Issuer: "gamevault", Duration: time.Hour}
	tok, _, err := tokens.Sign(&u)
	require.NoError(t, err)

	srv := NewGRPCServer(NewServer(library.NewRepo(db), library.NewNotifier(nil, nil, nil)), tokens, users, nil)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &env{client: NewLibraryServiceClient(conn), users: users, tokens: tokens, token: tok}
}

func (e *env) ctx() context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+e.token)
}

func TestPutListGetDelete(t *testing.T) {
	e := setup(t)
	ctx := e.ctx()

	_, err := e.client.PutGame(ctx, &PutGameRequest{Game: models.OwnedGame{GameID: 3, Name: "Inside"}})
	require.NoError(t, err)
	resp, err := e.client.PutGame(ctx, &PutGameRequest{Game: models.OwnedGame{GameID: 3, Status: models.PlayStatePlaying}})
	require.NoError(t, err)
	assert.Equal(t, "Inside", resp.Game.Name)
	assert.Equal(t, models.PlayStatePlaying, resp.Game.Status)

	list, err := e.client.ListGames(ctx, &ListGamesRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	list, err = e.client.ListGames(ctx, &ListGamesRequest{Status: models.PlayStateCompleted})
	require.NoError(t, err)
	assert.Empty(t, list.Games)

	got, err := e.client.GetGame(ctx, &GetGameRequest{GameID: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Game.GameID)

	del, err := e.client.DeleteGame(ctx, &DeleteGameRequest{GameID: 3})
	require.NoError(t, err)
	assert.True(t, del.Deleted)

	_, err = e.client.GetGame(ctx, &GetGameRequest{GameID: 3})
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = e.client.DeleteGame(ctx, &DeleteGameRequest{GameID: 3})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestInvalidArguments(t *testing.T) {
	e := setup(t)
	ctx := e.ctx()

	_, err := e.client.GetGame(ctx, &GetGameRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = e.client.PutGame(ctx, &PutGameRequest{Game: models.OwnedGame{GameID: 1, Status: "ABANDONED"}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = e.client.ListGames(ctx, &ListGamesRequest{Status: "nope"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAuthIsRequired(t *testing.T) {
	e := setup(t)

	_, err := e.client.ListGames(context.Background(), &ListGamesRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	bad := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer nope")
	_, err = e.client.ListGames(bad, &ListGamesRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	require.NoError(t, e.users.BumpTokenVersion(context.Background(), "u1"))
	_, err = e.client.ListGames(e.ctx(), &ListGamesRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err), "revoked tokens are rejected")
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(zap.NewNop())
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/y"},
		func(context.Context, any) (any, error) { panic("boom") })
	assert.Equal(t, codes.Internal, status.Code(err))
}
