package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mr1hm/robot-scan-console/internal/models"
)

// Client is a thin typed wrapper around the scan service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetScanResult(ctx context.Context, id string) (models.ScanResult, error) {
	req, err := structpb.NewStruct(map[string]any{"id": id})
	if err != nil {
		return models.ScanResult{}, err
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetScanResultMethod, req, out); err != nil {
		return models.ScanResult{}, err
	}

	var result models.ScanResult
	if err := FromStruct(out, &result); err != nil {
		return models.ScanResult{}, err
	}
	return result, nil
}

// EventStream yields events until the server ends the stream or ctx is done.
type EventStream struct {
	stream grpc.ServerStreamingClient[structpb.Struct]
}

func (c *Client) StreamScanEvents(ctx context.Context) (*EventStream, error) {
	stream, err := c.cc.NewStream(ctx, &ScanServiceDesc.Streams[0], StreamScanEventsMethod)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream: x}, nil
}

func (s *EventStream) Recv() (models.Event, error) {
	msg, err := s.stream.Recv()
	if err != nil {
		return models.Event{}, err
	}
	var e models.Event
	if err := FromStruct(msg, &e); err != nil {
		return models.Event{}, err
	}
	return e, nil
}
