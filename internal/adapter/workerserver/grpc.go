package workerserver

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"food-router/internal/adapter/worker/workerpb"
	"food-router/internal/domain"
)

// grpcService adapts an Executor to workerpb.WorkerServiceServer.
type grpcService struct {
	workerpb.UnimplementedWorkerServiceServer
	exec domain.Executor
}

func (s *grpcService) Execute(ctx context.Context, in *workerpb.TaskRequest) (*workerpb.TaskResponse, error) {
	req := domain.WireRequest{ID: in.Id, Kind: domain.TaskKind(in.Kind)}
	if len(in.Fields) > 0 {
		if err := json.Unmarshal(in.Fields, &req.Fields); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid fields: %v", err)
		}
	}
	resp, err := s.exec.Execute(ctx, req)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return &workerpb.TaskResponse{
		Id:      resp.ID,
		Status:  resp.Status,
		Payload: resp.Payload,
		Error:   resp.Error,
	}, nil
}

func (s *grpcService) Card(context.Context, *workerpb.CardRequest) (*workerpb.CardResponse, error) {
	card := s.exec.Card()
	out := &workerpb.CardResponse{Name: card.Name, Description: card.Description, Version: card.Version}
	for _, k := range card.Skills {
		out.Skills = append(out.Skills, string(k))
	}
	return out, nil
}
