package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/baxromumarov/job-aggregator/internal/httpx"
)

const (
	ErrorNetwork   = "network"
	ErrorTimeout   = "timeout"
	ErrorParsing   = "parsing"
	ErrorRateLimit = "rate_limit"
	ErrorAuth      = "auth"
	ErrorUpstream  = "upstream"
	ErrorStore     = "store"
	ErrorUnknown   = "unknown"
)

// ClassifyFetchError buckets a provider error for logs and metric labels.
func ClassifyFetchError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	var fe *httpx.FetchError
	if errors.As(err, &fe) {
		switch {
		case fe.Status == http.StatusTooManyRequests:
			return ErrorRateLimit
		case fe.Status == http.StatusUnauthorized || fe.Status == http.StatusForbidden:
			return ErrorAuth
		case fe.Status >= 500:
			return ErrorUpstream
		case fe.Status == 0:
			return classifyTransport(fe.Err)
		default:
			return ErrorUpstream
		}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ErrorParsing
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "decode failed") || strings.Contains(msg, "parse failed") {
		return ErrorParsing
	}
	return classifyTransport(err)
}

func classifyTransport(err error) string {
	if err == nil {
		return ErrorNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTimeout
		}
		return ErrorNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorNetwork
	}
	return ErrorUnknown
}
