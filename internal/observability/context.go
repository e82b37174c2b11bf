package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	userKey       contextKey = "user"
	workflowIDKey contextKey = "workflow_id"
	runIDKey      contextKey = "workflow_run_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithUser adds the acting user to the context.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the acting user from context.
// Returns empty string if not present.
func UserFromContext(ctx context.Context) string {
	if v := ctx.Value(userKey); v != nil {
		if u, ok := v.(string); ok {
			return u
		}
	}
	return ""
}

// WithWorkflow adds workflow ID and run ID to the context.
func WithWorkflow(ctx context.Context, workflowID, runID string) context.Context {
	ctx = context.WithValue(ctx, workflowIDKey, workflowID)
	ctx = context.WithValue(ctx, runIDKey, runID)
	return ctx
}

// WorkflowFromContext retrieves workflow ID and run ID from context.
// Returns empty strings if not present.
func WorkflowFromContext(ctx context.Context) (workflowID, runID string) {
	if v := ctx.Value(workflowIDKey); v != nil {
		if id, ok := v.(string); ok {
			workflowID = id
		}
	}
	if v := ctx.Value(runIDKey); v != nil {
		if id, ok := v.(string); ok {
			runID = id
		}
	}
	return workflowID, runID
}

// RequestContext bundles the observability fields of one request or task.
type RequestContext struct {
	RequestID  string
	User       string
	WorkflowID string
	RunID      string
}

// WithRequestContext adds all request context fields to the context.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	if rc.RequestID != "" {
		ctx = WithRequestID(ctx, rc.RequestID)
	}
	if rc.User != "" {
		ctx = WithUser(ctx, rc.User)
	}
	if rc.WorkflowID != "" || rc.RunID != "" {
		ctx = WithWorkflow(ctx, rc.WorkflowID, rc.RunID)
	}
	return ctx
}

// RequestContextFromContext extracts all request context fields from the context.
func RequestContextFromContext(ctx context.Context) RequestContext {
	workflowID, runID := WorkflowFromContext(ctx)

	return RequestContext{
		RequestID:  RequestIDFromContext(ctx),
		User:       UserFromContext(ctx),
		WorkflowID: workflowID,
		RunID:      runID,
	}
}
