package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/slides-explainer/internal/common"
	"github.com/joseph-ayodele/slides-explainer/internal/entity"
	"github.com/joseph-ayodele/slides-explainer/internal/intake"
)

const jobsServiceName = "explainer.v1.JobsService"

// JobsServer is the gRPC surface. Requests and responses are google.protobuf.Struct.
type JobsServer interface {
	Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// JobsServiceDesc registers JobsServer on a grpc.Server.
var JobsServiceDesc = grpc.ServiceDesc{
	ServiceName: jobsServiceName,
	HandlerType: (*JobsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: jobsSubmitHandler},
		{MethodName: "GetStatus", Handler: jobsGetStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "explainer/v1/jobs.proto",
}

func RegisterJobsServer(s grpc.ServiceRegistrar, srv JobsServer) {
	s.RegisterService(&JobsServiceDesc, srv)
}

func jobsSubmitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JobsServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + jobsServiceName + "/Submit"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(JobsServer).Submit(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func jobsGetStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JobsServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + jobsServiceName + "/GetStatus"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(JobsServer).GetStatus(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// JobsService implements JobsServer over intake and status.
type JobsService struct {
	intake Intake
	status StatusResolver
	logger *slog.Logger
}

func NewJobsService(in Intake, st StatusResolver, logger *slog.Logger) *JobsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobsService{intake: in, status: st, logger: logger}
}

// Submit accepts {sourceName, ownerIdentifier?, jobId?, content?}. content is the base64
// document; without it the document must already be stored under jobId.
func (s *JobsService) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	sourceName := f["sourceName"].GetStringValue()
	owner := f["ownerIdentifier"].GetStringValue()

	var (
		id  uuid.UUID
		err error
	)
	if content := f["content"].GetStringValue(); content != "" {
		raw, decErr := base64.StdEncoding.DecodeString(content)
		if decErr != nil {
			return nil, common.GRPCError(common.InvalidInputError("content must be base64"))
		}
		id, err = s.intake.Upload(ctx, sourceName, owner, bytes.NewReader(raw))
	} else {
		sub := intake.SubmitRequest{SourceName: sourceName, OwnerIdentifier: owner}
		if raw := strings.TrimSpace(f["jobId"].GetStringValue()); raw != "" {
			if sub.ID, err = uuid.Parse(raw); err != nil {
				return nil, common.GRPCError(common.InvalidInputError("jobId must be a UUID"))
			}
		}
		id, err = s.intake.Submit(ctx, sub)
	}
	if err != nil {
		s.logger.Warn("grpc.submit.failed", "source_name", sourceName, "error", err)
		return nil, common.GRPCError(err)
	}
	return structpb.NewStruct(map[string]any{"jobId": id.String()})
}

// GetStatus accepts {jobId} or {ownerIdentifier, sourceName?}.
func (s *JobsService) GetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	var (
		v   *entity.StatusView
		err error
	)
	if raw := strings.TrimSpace(f["jobId"].GetStringValue()); raw != "" {
		id, perr := uuid.Parse(raw)
		if perr != nil {
			return nil, common.GRPCError(common.InvalidInputError("jobId must be a UUID"))
		}
		v, err = s.status.ResolveByID(ctx, id)
	} else {
		v, err = s.status.ResolveByOwner(ctx, f["ownerIdentifier"].GetStringValue(), f["sourceName"].GetStringValue())
	}
	if err != nil {
		return nil, common.GRPCError(err)
	}
	return viewToStruct(v)
}

func viewToStruct(v *entity.StatusView) (*structpb.Struct, error) {
	m := map[string]any{
		"jobId":       v.JobID.String(),
		"state":       string(v.State),
		"sourceName":  v.SourceName,
		"hallName":    v.HallName,
		"submittedAt": v.SubmittedAt.UTC().Format(time.RFC3339Nano),
		"explanation": nil,
	}
	if v.FinishedAt != nil {
		m["finishedAt"] = v.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	if v.Explanation != nil {
		m["explanation"] = *v.Explanation
	}
	return structpb.NewStruct(m)
}

// NewGRPCServer builds a server with JobsService, health and reflection registered.
func NewGRPCServer(svc JobsServer, logger *slog.Logger) (*grpc.Server, *health.Server) {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogging(logger)))
	RegisterJobsServer(gs, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(jobsServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(gs)
	return gs, hs
}

func unaryLogging(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		rid := uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
		resp, err := handler(ctx, req)
		logger.Info("grpc.request",
			"method", info.FullMethod,
			"request_id", rid,
			"ok", err == nil,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
