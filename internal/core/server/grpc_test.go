package server

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/sweetbre/internal/core/api"
	"github.com/solatis/sweetbre/internal/core/auth"
	"github.com/solatis/sweetbre/internal/core/config"
	"github.com/solatis/sweetbre/internal/rules"
)

const secretID = "0123456789abcdef0123456789abcdef"

var secret = []byte("testsecret1234567890abcdefghijklmnop")

func startServer(t *testing.T) *grpc.ClientConn {
	t.Helper()
	p := rules.NewProject("test")
	rs := rules.NewRuleset("main")
	if err := rs.AddRule(&rules.Rule{Name: "r", Do: []rules.Node{
		&rules.SetVariable{Name: "x", Value: rules.Lit(1)},
	}}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddRuleset(rs); err != nil {
		t.Fatal(err)
	}

	svc, err := api.NewService(rules.NewEngine(p), api.Options{})
	if err != nil {
		t.Fatal(err)
	}
	authn := auth.NewAuthenticator(map[string][]byte{secretID: secret}, nil)
	srv, err := NewGRPCServer(config.DefaultConfig().Server, svc, authn, nil, nil)
	if err != nil {
		t.Fatalf("NewGRPCServer() error = %v, want nil", err)
	}

	lis := bufconn.Listen(1 << 20)
	go srv.Serve(context.Background(), lis)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGRPCServer_HealthWithoutKey(t *testing.T) {
	conn := startServer(t)
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{
		Service: api.ServiceName,
	})
	if err != nil {
		t.Fatalf("Check() error = %v, want nil", err)
	}
	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("Check() status = %v, want SERVING", resp.Status)
	}
}

func TestGRPCServer_EvaluateRequiresKey(t *testing.T) {
	conn := startServer(t)
	client := api.NewEvaluationClient(conn)

	_, err := client.Evaluate(context.Background(), &structpb.Struct{})
	if got := status.Code(err); got != codes.Unauthenticated {
		t.Fatalf("Evaluate() without key code = %v, want %v", got, codes.Unauthenticated)
	}

	key, err := auth.GenerateAPIKey(secretID, secret)
	if err != nil {
		t.Fatal(err)
	}
	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", key)
	out, err := client.Evaluate(ctx, &structpb.Struct{})
	if err != nil {
		t.Fatalf("Evaluate() with key error = %v, want nil", err)
	}
	if got := out.Fields["variables"].GetStructValue().GetFields()["x"].GetNumberValue(); got != 1 {
		t.Errorf("variable x = %v, want 1", got)
	}
}

func TestNewGRPCServer_Validation(t *testing.T) {
	if _, err := NewGRPCServer(config.DefaultConfig().Server, nil, auth.NewAuthenticator(nil, nil), nil, nil); err == nil {
		t.Error("NewGRPCServer(nil service) error = nil, want error")
	}
}
