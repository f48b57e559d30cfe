package server

import (
	"context"
	"encoding/base64"
	"net"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/slides-explainer/internal/entity"
)

func dialJobs(t *testing.T, in Intake, st StatusResolver) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs, _ := NewGRPCServer(NewJobsService(in, st, testLogger()), testLogger())
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func invoke(t *testing.T, conn *grpc.ClientConn, method string, in map[string]any) (*structpb.Struct, error) {
	t.Helper()
	req, err := structpb.NewStruct(in)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	out := new(structpb.Struct)
	err = conn.Invoke(context.Background(), "/"+jobsServiceName+"/"+method, req, out)
	return out, err
}

func TestGRPCSubmitWithContentUploads(t *testing.T) {
	id := uuid.New()
	in := &fakeIntake{id: id}
	conn := dialJobs(t, in, &fakeStatus{})

	out, err := invoke(t, conn, "Submit", map[string]any{
		"sourceName":      "deck.pptx",
		"ownerIdentifier": "ada@example.com",
		"content":         base64.StdEncoding.EncodeToString([]byte("deck")),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.GetFields()["jobId"].GetStringValue() != id.String() {
		t.Fatalf("jobId = %v", out.GetFields()["jobId"])
	}
	if in.gotBody != "deck" || in.gotOwner != "ada@example.com" {
		t.Fatalf("intake saw body=%q owner=%q", in.gotBody, in.gotOwner)
	}
}

func TestGRPCSubmitWithoutContentRegisters(t *testing.T) {
	id := uuid.New()
	in := &fakeIntake{id: id}
	conn := dialJobs(t, in, &fakeStatus{})

	if _, err := invoke(t, conn, "Submit", map[string]any{"sourceName": "deck.pptx", "jobId": id.String()}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(in.submitted) != 1 || in.submitted[0].ID != id {
		t.Fatalf("submitted = %+v", in.submitted)
	}

	_, err := invoke(t, conn, "Submit", map[string]any{"sourceName": "deck.pptx", "jobId": "nope"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("bad jobId: code = %v", status.Code(err))
	}
}

func TestGRPCGetStatus(t *testing.T) {
	id := uuid.New()
	st := &fakeStatus{views: map[uuid.UUID]*entity.StatusView{id: completedView(id)}}
	conn := dialJobs(t, &fakeIntake{}, st)

	out, err := invoke(t, conn, "GetStatus", map[string]any{"jobId": id.String()})
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	f := out.GetFields()
	if f["state"].GetStringValue() != "completed" || f["explanation"].GetStringValue() != "E1\nE2" || f["hallName"].GetStringValue() != "hall1" {
		t.Fatalf("unexpected response: %v", out)
	}

	_, err = invoke(t, conn, "GetStatus", map[string]any{"jobId": uuid.New().String()})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("unknown job: code = %v", status.Code(err))
	}
}

func TestGRPCHealth(t *testing.T) {
	conn := dialJobs(t, &fakeIntake{}, &fakeStatus{})
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: jobsServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("health = %v", resp.GetStatus())
	}
}
