package rpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lexiqai/transcript-sync/internal/config"
	"github.com/lexiqai/transcript-sync/internal/resilience"
	"github.com/lexiqai/transcript-sync/internal/resolver"
	"github.com/lexiqai/transcript-sync/internal/transcript"
)

func testTranscript(t *testing.T) *transcript.Transcript {
	t.Helper()
	tr, err := transcript.Build(
		[]transcript.WordInput{
			{Text: "The", Start: 0.0, End: 0.2},
			{Text: "cat", Start: 0.2, End: 0.5},
			{Text: "sat", Start: 0.5, End: 0.9},
			{Text: "Then", Start: 1.0, End: 1.3},
			{Text: "slept", Start: 1.3, End: 1.8},
		},
		[]transcript.SentenceInput{
			{Text: "The cat sat.", Start: 0.0, End: 0.9},
			{Text: "Then slept.", Start: 1.0, End: 1.8},
		},
	)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	return tr
}

func testConfig() *config.Config {
	return &config.Config{
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
		RetryMaxAttempts:           2,
		RetryInitialBackoff:        1,
		ReconnectMaxAttempts:       1,
		ReconnectBackoff:           1,
	}
}

// startServer serves the Sync service over an in-memory listener
func startServer(t *testing.T, policy resolver.PastEndPolicy) (*Server, *bufconn.Listener) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(NewService(testTranscript(t), policy))

	go srv.Serve(lis)
	t.Cleanup(srv.Stop)
	return srv, lis
}

func dialOption(lis *bufconn.Listener) grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
}

func newTestClient(t *testing.T, lis *bufconn.Listener) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), "passthrough:///bufnet", testConfig(), dialOption(lis))
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClient_Resolve(t *testing.T) {
	_, lis := startServer(t, resolver.WrapToFirst)
	client := newTestClient(t, lis)

	result, next, err := client.Resolve(context.Background(), 1.4, 0)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if result.SentenceIndex != 1 || result.SentenceText != "Then slept." {
		t.Errorf("Expected sentence 1, got %d '%s'", result.SentenceIndex, result.SentenceText)
	}
	if result.Word == nil || result.Word.Text != "slept" {
		t.Errorf("Expected word 'slept', got %+v", result.Word)
	}
	if result.Highlight == nil || result.Highlight.Start != 5 || result.Highlight.Length != 6 {
		t.Errorf("Expected highlight {5 6}, got %+v", result.Highlight)
	}
	if next != 1 {
		t.Errorf("Expected next index 1, got %d", next)
	}
}

func TestClient_ResolveMatchesLocal(t *testing.T) {
	_, lis := startServer(t, resolver.WrapToFirst)
	client := newTestClient(t, lis)
	tr := testTranscript(t)

	prior := 0
	for _, at := range []float64{-1, 0, 0.1, 0.35, 0.95, 1.0, 1.5, 1.8, 3} {
		want, _ := resolver.Resolve(tr, at, 0)
		got, next, err := client.Resolve(context.Background(), at, prior)
		if err != nil {
			t.Fatalf("Resolve(%v) failed: %v", at, err)
		}
		if !got.Equal(want) {
			t.Errorf("Resolve(%v): expected %+v, got %+v", at, want, got)
		}
		prior = next
	}
}

func TestClient_HealthCheck(t *testing.T) {
	srv, lis := startServer(t, resolver.WrapToFirst)
	client := newTestClient(t, lis)

	healthy, err := client.HealthCheck(context.Background())
	if err != nil || !healthy {
		t.Errorf("Expected healthy, got %v (%v)", healthy, err)
	}

	serving, _ := srv.Serving(context.Background())
	if !serving {
		t.Error("Expected server to report serving")
	}
}

func TestClient_Closed(t *testing.T) {
	_, lis := startServer(t, resolver.WrapToFirst)
	client := newTestClient(t, lis)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if client.IsConnected() {
		t.Error("Expected client to be disconnected after Close")
	}

	if _, _, err := client.Resolve(context.Background(), 0.1, 0); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if _, err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	lis.Close()

	if _, err := NewClient(context.Background(), "passthrough:///bufnet", testConfig(), dialOption(lis)); err == nil {
		t.Error("Expected error connecting to a closed listener")
	}
}

func TestNewClient_WrongService(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, health.NewServer())
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	cfg := testConfig()
	cfg.ReconnectMaxAttempts = 3
	_, err := NewClient(context.Background(), "passthrough:///bufnet", cfg, dialOption(lis))
	if !resilience.IsPermanent(err) {
		t.Errorf("Expected permanent error for a server without the sync service, got %v", err)
	}
}

func TestService_InvalidRequests(t *testing.T) {
	svc := NewService(testTranscript(t), resolver.WrapToFirst)

	tests := []struct {
		name   string
		fields map[string]interface{}
	}{
		{"missing time", map[string]interface{}{}},
		{"time not a number", map[string]interface{}{"time": "1.5"}},
		{"prior index not a number", map[string]interface{}{"time": 1.0, "prior_index": true}},
		{"unknown policy", map[string]interface{}{"time": 1.0, "past_end": "loop"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := structpb.NewStruct(tt.fields)
			if err != nil {
				t.Fatalf("NewStruct() failed: %v", err)
			}
			_, err = svc.Resolve(context.Background(), req)
			if status.Code(err) != codes.InvalidArgument {
				t.Errorf("Expected InvalidArgument, got %v", err)
			}
		})
	}
}

func TestService_PastEndOverride(t *testing.T) {
	svc := NewService(testTranscript(t), resolver.WrapToFirst)

	req, _ := structpb.NewStruct(map[string]interface{}{"time": 10.0, "past_end": "hold"})
	resp, err := svc.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	result, next, err := decodeResponse(resp)
	if err != nil {
		t.Fatalf("decodeResponse() failed: %v", err)
	}
	if result.SentenceIndex != 1 || next != 1 {
		t.Errorf("Expected the last sentence to be held, got %d (next %d)", result.SentenceIndex, next)
	}

	// Default policy wraps to the first sentence
	req, _ = structpb.NewStruct(map[string]interface{}{"time": 10.0})
	resp, _ = svc.Resolve(context.Background(), req)
	result, _, _ = decodeResponse(resp)
	if result.SentenceIndex != 0 {
		t.Errorf("Expected wrap to sentence 0, got %d", result.SentenceIndex)
	}
}

func TestService_EmptyTranscript(t *testing.T) {
	svc := NewService(nil, resolver.WrapToFirst)

	req, _ := structpb.NewStruct(map[string]interface{}{"time": 1.0})
	resp, err := svc.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	result, next, _ := decodeResponse(resp)
	if result.HasSentence() || result.WordIndex != -1 || next != 0 {
		t.Errorf("Expected empty result, got %+v (next %d)", result, next)
	}
}
