package match

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oggyb/fashionjiok/internal/app"
	svcErr "github.com/oggyb/fashionjiok/internal/errors"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "fashionjiok.match.v1.MatchService"

// MatchServiceServer is the gRPC surface of the matching core. Payloads are
// google.protobuf.Struct objects with the same field names as the REST API.
type MatchServiceServer interface {
	SendLike(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SelectCandidates(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveRoom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMatches(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryMethod(name string, call func(MatchServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MatchServiceServer), ctx, req.(*structpb.Struct))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes MatchService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("SendLike", MatchServiceServer.SendLike),
		unaryMethod("SelectCandidates", MatchServiceServer.SelectCandidates),
		unaryMethod("ResolveRoom", MatchServiceServer.ResolveRoom),
		unaryMethod("ListMatches", MatchServiceServer.ListMatches),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fashionjiok/match/v1/match.proto",
}

// Registrar ties the Match service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Match service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Match service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	s.RegisterService(&ServiceDesc, &GRPCHandler{svc: NewService(r.appCtx)})
}

// GRPCHandler adapts Service to MatchServiceServer.
type GRPCHandler struct {
	svc *Service
}

func NewGRPCHandler(svc *Service) *GRPCHandler {
	return &GRPCHandler{svc: svc}
}

// SendLike: {fromUser, toUser} -> {alreadyLiked, isMatch, matchedUser, roomId}
func (h *GRPCHandler) SendLike(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	from, err := idField(req, "fromUser")
	if err != nil {
		return nil, svcErr.Map(err)
	}
	to, err := idField(req, "toUser")
	if err != nil {
		return nil, svcErr.Map(err)
	}
	res, err := h.svc.Engine.SendLike(ctx, from, to)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return toStruct(res)
}

// SelectCandidates: {userId} -> {candidates: [...]}
func (h *GRPCHandler) SelectCandidates(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := idField(req, "userId")
	if err != nil {
		return nil, svcErr.Map(err)
	}
	deck, err := h.svc.Selector.SelectCandidates(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return toStruct(map[string]any{"candidates": deck})
}

// ResolveRoom: {userA, userB} -> {roomId}; NotFound unless the pair is matched
func (h *GRPCHandler) ResolveRoom(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	a, err := idField(req, "userA")
	if err != nil {
		return nil, svcErr.Map(err)
	}
	b, err := idField(req, "userB")
	if err != nil {
		return nil, svcErr.Map(err)
	}
	roomID, err := h.svc.MatchRoom(ctx, a, b)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return toStruct(map[string]any{"roomId": roomID})
}

// ListMatches: {userId, pageToken?} -> {matches: [...], nextPageToken?}
func (h *GRPCHandler) ListMatches(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := idField(req, "userId")
	if err != nil {
		return nil, svcErr.Map(err)
	}
	var token *string
	if v, ok := req.GetFields()["pageToken"]; ok && v.GetStringValue() != "" {
		s := v.GetStringValue()
		token = &s
	}
	rows, next, err := h.svc.ListMatches(ctx, userID, token)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := map[string]any{"matches": rows}
	if next != nil {
		out["nextPageToken"] = *next
	}
	return toStruct(out)
}

// idField reads a user id given either as a JSON number or a decimal string.
func idField(req *structpb.Struct, key string) (uint64, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return 0, svcErr.Validationf("%s is required", key)
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n <= 0 || n != math.Trunc(n) || n > math.MaxInt64 {
			return 0, svcErr.Validationf("%s must be a positive integer", key)
		}
		return uint64(n), nil
	case *structpb.Value_StringValue:
		n, err := strconv.ParseUint(k.StringValue, 10, 64)
		if err != nil || n == 0 {
			return 0, svcErr.Validationf("%s must be a positive integer", key)
		}
		return n, nil
	}
	return 0, svcErr.Validationf("%s must be a positive integer", key)
}

// toStruct converts a JSON-tagged value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, svcErr.Map(fmt.Errorf("encode response: %w", err))
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, svcErr.Map(fmt.Errorf("encode response: %w", err))
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, svcErr.Map(fmt.Errorf("encode response: %w", err))
	}
	return s, nil
}
