// Package rpc exposes the resolver over gRPC. Messages are
// google.protobuf.Struct values so no generated code is needed; the field
// names match the JSON used by the playback sessions.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lexiqai/transcript-sync/internal/observability"
	"github.com/lexiqai/transcript-sync/internal/resolver"
	"github.com/lexiqai/transcript-sync/internal/transcript"
)

const (
	// ServiceName is the fully qualified gRPC service name
	ServiceName = "transcriptsync.v1.Sync"

	resolveMethod = "/" + ServiceName + "/Resolve"
)

// SyncServer is the server API for the Sync service
type SyncServer interface {
	// Resolve takes {time, prior_index?, past_end?} and returns the
	// resolution result plus next_index
	Resolve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var syncServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SyncServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Resolve",
			Handler:    resolveHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "transcriptsync/v1/sync.proto",
}

func resolveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncServer).Resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: resolveMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SyncServer).Resolve(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterSyncServer registers srv on s
func RegisterSyncServer(s grpc.ServiceRegistrar, srv SyncServer) {
	s.RegisterService(&syncServiceDesc, srv)
}

// resolveResponse is the wire shape of a Resolve response
type resolveResponse struct {
	resolver.Result
	NextIndex int `json:"next_index"`
}

// Service resolves times against one loaded transcript
type Service struct {
	transcript *transcript.Transcript
	resolver   *resolver.Resolver
	logger     zerolog.Logger
}

// NewService creates a Sync service for t
func NewService(t *transcript.Transcript, policy resolver.PastEndPolicy) *Service {
	if t == nil {
		t = transcript.Empty()
	}
	return &Service{
		transcript: t,
		resolver:   resolver.New(policy),
		logger:     observability.Component("rpc"),
	}
}

// Resolve implements SyncServer
func (s *Service) Resolve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	at, err := numberField(fields, "time", true)
	if err != nil {
		return nil, err
	}
	prior, err := numberField(fields, "prior_index", false)
	if err != nil {
		return nil, err
	}

	r := s.resolver
	if v, ok := fields["past_end"]; ok {
		policy, err := resolver.ParsePastEndPolicy(v.GetStringValue())
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		r = resolver.New(policy)
	}

	start := time.Now()
	result, next := r.Resolve(s.transcript, at, int(prior))
	observability.RecordResolution(
		observability.Outcome(result.HasSentence(), result.Highlight != nil),
		"grpc",
		time.Since(start),
	)

	out, err := encodeResponse(result, next)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode resolve response")
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func numberField(fields map[string]*structpb.Value, name string, required bool) (float64, error) {
	v, ok := fields[name]
	if !ok {
		if required {
			return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
		}
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}
	return n.NumberValue, nil
}

func encodeRequest(at float64, priorIndex int) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"time":        structpb.NewNumberValue(at),
		"prior_index": structpb.NewNumberValue(float64(priorIndex)),
	}}
}

func encodeResponse(result resolver.Result, next int) (*structpb.Struct, error) {
	data, err := json.Marshal(resolveResponse{Result: result, NextIndex: next})
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeResponse(s *structpb.Struct) (resolver.Result, int, error) {
	data, err := protojson.Marshal(s)
	if err != nil {
		return resolver.None(), 0, err
	}
	var resp resolveResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return resolver.None(), 0, fmt.Errorf("invalid resolve response: %w", err)
	}
	return resp.Result, resp.NextIndex, nil
}
