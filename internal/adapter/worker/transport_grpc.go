package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"food-router/internal/adapter/worker/workerpb"
	"food-router/internal/domain"
)

// GRPCTransport calls WorkerService over one client connection.
type GRPCTransport struct {
	conn   *grpc.ClientConn
	client workerpb.WorkerServiceClient
}

// DialGRPC creates a transport for address (host:port). The connection is
// established lazily on the first call.
func DialGRPC(address string, opts ...grpc.DialOption) (*GRPCTransport, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(workerpb.CodecName)),
	}, opts...)
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc connect %s: %w", address, err)
	}
	return &GRPCTransport{conn: conn, client: workerpb.NewWorkerServiceClient(conn)}, nil
}

// Send implements domain.Transport.
func (t *GRPCTransport) Send(ctx context.Context, req domain.WireRequest) (domain.WireResponse, error) {
	fields, err := json.Marshal(req.Fields)
	if err != nil {
		return domain.WireResponse{}, fmt.Errorf("encode fields: %w", err)
	}
	resp, err := t.client.Execute(ctx, &workerpb.TaskRequest{
		Id:     req.ID,
		Kind:   string(req.Kind),
		Fields: fields,
	})
	if err != nil {
		return domain.WireResponse{}, rpcError("execute", err)
	}
	return domain.WireResponse{
		ID:      resp.Id,
		Status:  resp.Status,
		Payload: resp.Payload,
		Error:   resp.Error,
	}, nil
}

// Card implements domain.Transport.
func (t *GRPCTransport) Card(ctx context.Context) (domain.AgentCard, error) {
	resp, err := t.client.Card(ctx, &workerpb.CardRequest{})
	if err != nil {
		return domain.AgentCard{}, rpcError("card", err)
	}
	card := domain.AgentCard{Name: resp.Name, Description: resp.Description, Version: resp.Version}
	for _, s := range resp.Skills {
		card.Skills = append(card.Skills, domain.TaskKind(s))
	}
	return card, nil
}

// Close implements domain.Transport.
func (t *GRPCTransport) Close() error {
	return t.conn.Close()
}

func rpcError(op string, err error) error {
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return fmt.Errorf("grpc %s: %w", op, context.DeadlineExceeded)
	case codes.Canceled:
		return fmt.Errorf("grpc %s: %w", op, context.Canceled)
	case codes.InvalidArgument:
		return domain.NewDomainError("grpc "+op, domain.ErrWorkerBusiness, status.Convert(err).Message())
	default:
		return fmt.Errorf("%w: grpc %s: %v", domain.ErrTransport, op, err)
	}
}
