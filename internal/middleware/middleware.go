package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/judyrop/catering-backend/internal/apperr"
	"github.com/judyrop/catering-backend/internal/auth"
	"github.com/judyrop/catering-backend/internal/ctxmanage"
	"github.com/judyrop/catering-backend/internal/logkey"
	"github.com/judyrop/catering-backend/internal/metrics"
)

const (
	TraceHeader = "X-Trace-ID"

	traceIDKey  = "traceId"
	loginURLKey = "loginUrl"
)

// Logger assigns a trace id to the request and logs it once it completes.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(traceIDKey, traceID)
		c.Request = c.Request.WithContext(ctxmanage.WithTraceID(c.Request.Context(), traceID))
		c.Header(TraceHeader, traceID)

		c.Next()

		slog.Info("request",
			slog.String(logkey.TraceID, traceID),
			slog.String(logkey.Method, c.Request.Method),
			slog.String(logkey.Path, c.Request.URL.Path),
			slog.Int(logkey.Status, c.Writer.Status()),
			slog.Duration(logkey.Latency, time.Since(start)),
		)
	}
}

// GetTraceIdOfRequest returns the trace id assigned by Logger.
func GetTraceIdOfRequest(c *gin.Context) string {
	return c.GetString(traceIDKey)
}

// Metrics records request counts and latency by matched route.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.RecordHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

type Mid struct {
	verifier auth.Verifier
	loginURL string
}

func NewMid(verifier auth.Verifier, loginURL string) *Mid {
	return &Mid{verifier: verifier, loginURL: loginURL}
}

// Authentication resolves the bearer token, when present, into a principal
// on the request context. Requests without a token continue anonymously.
func (m *Mid) Authentication() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(loginURLKey, m.loginURL)
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			AbortWithError(c, apperr.Unauthenticated("missing or invalid Authorization header"))
			return
		}
		p, err := m.verifier.Verify(c.Request.Context(), strings.TrimPrefix(header, prefix))
		if err != nil {
			slog.Warn("token rejected", slog.String(logkey.TraceID, GetTraceIdOfRequest(c)), slog.String(logkey.Error, err.Error()))
			AbortWithError(c, apperr.Unauthenticated("invalid token"))
			return
		}
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// Authorize runs next only when the caller holds role.
func (m *Mid) Authorize(next gin.HandlerFunc, role auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d := auth.RequireRole(Principal(c), role); !d.Allowed() {
			AbortWithError(c, d.Err())
			return
		}
		next(c)
	}
}

func Principal(c *gin.Context) auth.Principal {
	return auth.FromContext(c.Request.Context())
}

// AbortWithError writes err using the status and message of its kind.
// Unauthenticated responses carry the login redirect.
func AbortWithError(c *gin.Context, err error) {
	AbortWithErrorFields(c, err, nil)
}

// AbortWithErrorFields is AbortWithError with extra body fields.
func AbortWithErrorFields(c *gin.Context, err error, fields gin.H) {
	status := apperr.HTTPStatus(err)
	body := gin.H{"success": false, "error": apperr.PublicMessage(err)}
	for k, v := range fields {
		body[k] = v
	}
	switch apperr.KindOf(err) {
	case apperr.KindUnauthenticated:
		if u := c.GetString(loginURLKey); u != "" {
			body["redirect"] = u
		}
	case apperr.KindStore:
		slog.Error("request failed", slog.String(logkey.TraceID, GetTraceIdOfRequest(c)), slog.String(logkey.Error, err.Error()))
	}
	c.AbortWithStatusJSON(status, body)
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
