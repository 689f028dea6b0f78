package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lexiqai/transcript-sync/internal/config"
	"github.com/lexiqai/transcript-sync/internal/observability"
	"github.com/lexiqai/transcript-sync/internal/resilience"
	"github.com/lexiqai/transcript-sync/internal/resolver"
)

// ErrNotConnected is returned by calls made after Close
var ErrNotConnected = errors.New("sync client is not connected")

// Client calls a remote Sync service
type Client struct {
	target   string
	dialOpts []grpc.DialOption
	timeout  time.Duration

	mu          sync.RWMutex
	conn        *grpc.ClientConn
	health      healthpb.HealthClient
	isConnected bool

	retry          *resilience.RetryConfig
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// NewClient creates a client for the Sync service at target, retrying until
// the remote health service answers. Extra dial options are appended to the
// defaults.
func NewClient(ctx context.Context, target string, cfg *config.Config, extra ...grpc.DialOption) (*Client, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		// Keepalive settings for long-lived connections
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	circuitBreaker := resilience.NewCircuitBreaker(
		"sync",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
	circuitBreaker.OnStateChange = func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
	}

	c := &Client{
		target:   target,
		dialOpts: append(opts, extra...),
		timeout:  5 * time.Second,
		retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
		circuitBreaker: circuitBreaker,
		logger:         observability.Component("rpc_client").With().Str("target", target).Logger(),
	}

	reconnect := &resilience.ReconnectConfig{
		MaxAttempts: cfg.ReconnectMaxAttempts,
		Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}
	if err := resilience.Reconnect(ctx, c.connect, reconnect); err != nil {
		return nil, fmt.Errorf("failed to connect to sync service: %w", err)
	}
	return c, nil
}

// connect creates the gRPC channel and waits for the remote health service
func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isConnected && c.conn != nil {
		return nil
	}

	conn, err := grpc.NewClient(c.target, c.dialOpts...)
	if err != nil {
		return resilience.NewPermanentError(fmt.Errorf("failed to create channel to %s: %w", c.target, err))
	}

	hc := healthpb.NewHealthClient(conn)
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := hc.Check(checkCtx, &healthpb.HealthCheckRequest{Service: ServiceName}); err != nil {
		conn.Close()
		// The remote health server does not know the service: wrong target
		if status.Code(err) == codes.NotFound {
			return resilience.NewPermanentError(fmt.Errorf("%s does not serve %s: %w", c.target, ServiceName, err))
		}
		return fmt.Errorf("sync service at %s is unreachable: %w", c.target, err)
	}

	c.conn = conn
	c.health = hc
	c.isConnected = true
	c.logger.Info().Msg("Connected to sync service")
	return nil
}

// Resolve resolves time remotely. The returned index is the prior index for
// the next call.
func (c *Client) Resolve(ctx context.Context, at float64, priorIndex int) (resolver.Result, int, error) {
	req := encodeRequest(at, priorIndex)
	resp := &structpb.Struct{}

	err := c.circuitBreaker.Call(func() error {
		return resilience.Retry(ctx, func(ctx context.Context) error {
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()

			if conn == nil {
				return ErrNotConnected
			}

			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			return conn.Invoke(callCtx, resolveMethod, req, resp)
		}, c.retry, resilience.IsRetryableNetworkError)
	})
	if err != nil {
		observability.IncrementCircuitBreakerFailures("sync")
		return resolver.None(), 0, fmt.Errorf("failed to call Resolve: %w", err)
	}

	return decodeResponse(resp)
}

// HealthCheck reports whether the remote Sync service is serving
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	c.mu.RLock()
	if !c.isConnected || c.health == nil {
		c.mu.RUnlock()
		return false, ErrNotConnected
	}
	hc := c.health
	c.mu.RUnlock()

	resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return false, fmt.Errorf("health check failed: %w", err)
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		err := c.conn.Close()
		c.isConnected = false
		c.conn = nil
		c.health = nil
		return err
	}
	return nil
}

// IsConnected returns whether the client is currently connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}
