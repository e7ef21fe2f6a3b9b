package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mr1hm/robot-scan-console/internal/metrics"
	"github.com/mr1hm/robot-scan-console/internal/repository"
)

const (
	ServiceName            = "robotscan.v1.ScanService"
	GetScanResultMethod    = "/" + ServiceName + "/GetScanResult"
	StreamScanEventsMethod = "/" + ServiceName + "/StreamScanEvents"
)

// ScanServiceServer serves scan reports and live scan events. Messages use
// protobuf Struct so the service needs no generated code.
type ScanServiceServer interface {
	GetScanResult(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	StreamScanEvents(req *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error
}

var ScanServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScanServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetScanResult",
			Handler:    getScanResultHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamScanEvents",
			Handler:       streamScanEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "robotscan/v1/scan.proto",
}

func RegisterScanServiceServer(s grpc.ServiceRegistrar, srv ScanServiceServer) {
	s.RegisterService(&ScanServiceDesc, srv)
}

func getScanResultHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScanServiceServer).GetScanResult(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetScanResultMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScanServiceServer).GetScanResult(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func streamScanEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ScanServiceServer).StreamScanEvents(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

type Server struct {
	repo        repository.HistoryRepository
	broadcaster *Broadcaster
	grpcServer  *grpc.Server
}

func NewServer(repo repository.HistoryRepository, broadcaster *Broadcaster) *Server {
	s := &Server{
		repo:        repo,
		broadcaster: broadcaster,
		grpcServer:  grpc.NewServer(),
	}
	RegisterScanServiceServer(s.grpcServer, s)
	return s
}

func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	slog.Info("gRPC server listening", "addr", addr)
	return s.Serve(lis)
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

func (s *Server) GetScanResult(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["id"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	marker, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, status.Errorf(codes.NotFound, "history marker not found: %s", id)
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to get history marker: %v", err)
	}
	if marker.ScanData == nil {
		return nil, status.Errorf(codes.NotFound, "history marker %s has no scan data", id)
	}

	out, err := toStruct(marker.ScanData)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode scan result: %v", err)
	}
	return out, nil
}

func (s *Server) StreamScanEvents(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	id, ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)

	metrics.ActiveStreams.WithLabelValues("grpc").Inc()
	defer metrics.ActiveStreams.WithLabelValues("grpc").Dec()

	slog.Info("client subscribed to scan event stream", "subscriber_id", id)

	for {
		select {
		case <-stream.Context().Done():
			slog.Info("client disconnected from scan event stream", "subscriber_id", id)
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}

			msg, err := toStruct(e)
			if err != nil {
				slog.Error("failed to encode scan event", "error", err, "subscriber_id", id)
				continue
			}
			if err := stream.Send(msg); err != nil {
				slog.Error("failed to send scan event to stream", "error", err, "subscriber_id", id)
				return err
			}
		}
	}
}

// toStruct converts a JSON-tagged value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// FromStruct decodes a Struct produced by this service back into v.
func FromStruct(s *structpb.Struct, v any) error {
	b, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("error encoding struct: %w", err)
	}
	return json.Unmarshal(b, v)
}
