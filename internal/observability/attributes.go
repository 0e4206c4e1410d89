// Package observability provides OpenTelemetry metrics exported in Prometheus format.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrJobStatus = "job_status"
	attrOp        = "op"
	attrSuccess   = "success"
	attrOutcome   = "outcome"
	attrReason    = "reason"
)

// workerRoutes are the worker RPC paths of the form /{route}/{id}.
var workerRoutes = map[string]bool{
	"status":    true,
	"cancel":    true,
	"pause":     true,
	"resume":    true,
	"retry":     true,
	"embedding": true,
}

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	return attribute.String(attrPath, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	return attribute.String(attrStatus, fmt.Sprintf("%dxx", code/100))
}

func jobStatusAttr(status string) attribute.KeyValue {
	return attribute.String(attrJobStatus, status)
}

func opAttr(op string) attribute.KeyValue {
	return attribute.String(attrOp, op)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(attrOutcome, outcome)
}

func reasonAttr(reason string) attribute.KeyValue {
	return attribute.String(attrReason, reason)
}

// normalizePath replaces job ids in known routes with {id} to bound cardinality.
func normalizePath(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")

	switch {
	case len(segments) >= 3 && segments[0] == "v1" && segments[1] == "ingestions" && segments[2] != "":
		segments[2] = "{id}"
	case len(segments) == 2 && workerRoutes[segments[0]] && segments[1] != "":
		segments[1] = "{id}"
	default:
		return path
	}
	return "/" + strings.Join(segments, "/")
}
