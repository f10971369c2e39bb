package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"gamevault/pkg/models"
)

const serviceName = "gamevault.library.v1.LibraryService"

type ListGamesRequest struct {
	Status models.PlayState `json:"status,omitempty"`
}

type ListGamesResponse struct {
	Total int                `json:"total"`
	Games []models.OwnedGame `json:"games"`
}

type GetGameRequest struct {
	GameID int64 `json:"game_id"`
}

type GameResponse struct {
	Game models.OwnedGame `json:"game"`
}

// PutGameRequest merges Game into the stored entry.
type PutGameRequest struct {
	Game models.OwnedGame `json:"game"`
}

type DeleteGameRequest struct {
	GameID int64 `json:"game_id"`
}

type DeleteGameResponse struct {
	Deleted bool `json:"deleted"`
}

// LibraryServiceServer is the per-user cloud library over gRPC. The user
// comes from the bearer token, never from the request.
type LibraryServiceServer interface {
	ListGames(context.Context, *ListGamesRequest) (*ListGamesResponse, error)
	GetGame(context.Context, *GetGameRequest) (*GameResponse, error)
	PutGame(context.Context, *PutGameRequest) (*GameResponse, error)
	DeleteGame(context.Context, *DeleteGameRequest) (*DeleteGameResponse, error)
}

func RegisterLibraryServiceServer(s grpc.ServiceRegistrar, srv LibraryServiceServer) {
	s.RegisterService(&LibraryServiceDesc, srv)
}

// unary adapts a typed method to a grpc.MethodDesc handler.
func unary[Req any, Resp any](method string, call func(LibraryServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LibraryServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LibraryServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var LibraryServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LibraryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListGames", LibraryServiceServer.ListGames),
		unary("GetGame", LibraryServiceServer.GetGame),
		unary("PutGame", LibraryServiceServer.PutGame),
		unary("DeleteGame", LibraryServiceServer.DeleteGame),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gamevault/library/v1/library.proto",
}

// LibraryServiceClient calls the service with the JSON codec.
type LibraryServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLibraryServiceClient(cc grpc.ClientConnInterface) *LibraryServiceClient {
	return &LibraryServiceClient{cc: cc}
}

func (c *LibraryServiceClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...)
}

func (c *LibraryServiceClient) ListGames(ctx context.Context, in *ListGamesRequest, opts ...grpc.CallOption) (*ListGamesResponse, error) {
	out := new(ListGamesResponse)
	if err := c.invoke(ctx, "ListGames", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LibraryServiceClient) GetGame(ctx context.Context, in *GetGameRequest, opts ...grpc.CallOption) (*GameResponse, error) {
	out := new(GameResponse)
	if err := c.invoke(ctx, "GetGame", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LibraryServiceClient) PutGame(ctx context.Context, in *PutGameRequest, opts ...grpc.CallOption) (*GameResponse, error) {
	out := new(GameResponse)
	if err := c.invoke(ctx, "PutGame", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LibraryServiceClient) DeleteGame(ctx context.Context, in *DeleteGameRequest, opts ...grpc.CallOption) (*DeleteGameResponse, error) {
	out := new(DeleteGameResponse)
	if err := c.invoke(ctx, "DeleteGame", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
