// Package integration adapts the resilient REST client to the remote
// call port used by step execution. Each warehouse execution service is
// registered once; operations are dispatched as JSON commands.
package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/paklog/orchestration/internal/workflow"
	"github.com/paklog/orchestration/pkg/integration"
	"github.com/paklog/orchestration/pkg/integration/rest"
)

// ErrUnknownService is returned when a step names a service that was
// never registered.
var ErrUnknownService = errors.New("unknown execution service")

// Caller dispatches step operations to the execution services.
type Caller struct {
	mu      sync.RWMutex
	clients map[string]*rest.Client
	logger  *slog.Logger
}

// NewCaller creates an empty caller. Services are added with RegisterService.
func NewCaller(logger *slog.Logger) *Caller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Caller{
		clients: make(map[string]*rest.Client),
		logger:  logger.With("component", "service_caller"),
	}
}

// RegisterService creates a client for one execution service.
func (c *Caller) RegisterService(cfg integration.Config) error {
	client, err := rest.New(cfg)
	if err != nil {
		return fmt.Errorf("register service %s: %w", cfg.ServiceName, err)
	}

	c.mu.Lock()
	c.clients[cfg.ServiceName] = client
	c.mu.Unlock()

	c.logger.Info("execution service registered",
		"service", cfg.ServiceName,
		"base_url", cfg.BaseURL,
	)
	return nil
}

// Services returns the names of all registered services.
func (c *Caller) Services() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.clients))
	for name := range c.clients {
		names = append(names, name)
	}
	return names
}

// Call dispatches one operation to a service as POST /operations/{name}
// and returns the decoded response payload. Failures come back as
// workflow errors so recovery can branch on their type.
func (c *Caller) Call(ctx context.Context, serviceName, operation string, request map[string]any) (map[string]any, error) {
	c.mu.RLock()
	client, ok := c.clients[serviceName]
	c.mu.RUnlock()
	if !ok {
		e := workflow.NewWorkflowError(workflow.ErrorInternal, "UNKNOWN_SERVICE",
			fmt.Sprintf("service %s is not registered: %v", serviceName, ErrUnknownService), time.Now().UTC())
		e.ServiceName = serviceName
		return nil, e
	}

	resp, err := client.Post(ctx, "/operations/"+operation, request)
	if err != nil {
		return nil, c.mapError(serviceName, operation, err)
	}

	var payload map[string]any
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			e := workflow.NewWorkflowError(workflow.ErrorDataIntegrity, "MALFORMED_RESPONSE",
				fmt.Sprintf("%s returned a response that is not valid JSON: %v", serviceName, err), time.Now().UTC())
			e.ServiceName = serviceName
			return nil, e
		}
	}
	return payload, nil
}

// mapError translates transport failures into the domain error taxonomy.
func (c *Caller) mapError(serviceName, operation string, err error) error {
	now := time.Now().UTC()

	if errors.Is(err, integration.ErrCircuitOpen) {
		e := workflow.NewWorkflowError(workflow.ErrorServiceUnavailable, "CIRCUIT_OPEN",
			fmt.Sprintf("%s is shedding load, circuit open", serviceName), now)
		e.ServiceName = serviceName
		return e
	}

	if errors.Is(err, integration.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		e := workflow.NewWorkflowError(workflow.ErrorTimeout, "CALL_TIMEOUT",
			fmt.Sprintf("%s did not answer %s in time", serviceName, operation), now)
		e.ServiceName = serviceName
		return e
	}

	var httpErr *integration.HTTPError
	if errors.As(err, &httpErr) {
		e := workflow.NewWorkflowError(
			classifyStatus(httpErr.StatusCode),
			fmt.Sprintf("HTTP_%d", httpErr.StatusCode),
			remoteMessage(serviceName, operation, httpErr),
			now,
		)
		e.ServiceName = serviceName
		if len(httpErr.Body) > 0 {
			e.Details = map[string]any{"responseBody": string(httpErr.Body)}
		}
		return e
	}

	e := workflow.NewWorkflowError(workflow.ErrorNetwork, "CONNECTION_FAILED",
		fmt.Sprintf("call to %s failed: %v", serviceName, err), now)
	e.ServiceName = serviceName
	return e
}

func classifyStatus(statusCode int) workflow.ErrorType {
	switch {
	case statusCode == http.StatusBadRequest:
		return workflow.ErrorValidation
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return workflow.ErrorPermissionDenied
	case statusCode == http.StatusNotFound:
		return workflow.ErrorResourceNotFound
	case statusCode == http.StatusConflict || statusCode == http.StatusUnprocessableEntity:
		return workflow.ErrorBusinessRuleViolation
	case statusCode >= 500:
		return workflow.ErrorServiceUnavailable
	default:
		return workflow.ErrorInternal
	}
}

// remoteMessage prefers the error message the service put in its body.
func remoteMessage(serviceName, operation string, httpErr *integration.HTTPError) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if len(httpErr.Body) > 0 && json.Unmarshal(httpErr.Body, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return fmt.Sprintf("%s rejected %s: %s", serviceName, operation, httpErr.Error())
}
