// Package logkey holds the attribute names shared by every log line.
package logkey

const (
	TraceID   = "trace_id"
	Error     = "error"
	UserID    = "user_id"
	OrderID   = "order_id"
	ProductID = "product_id"
	Status    = "status"
	Method    = "method"
	Path      = "path"
	Latency   = "latency"
)
