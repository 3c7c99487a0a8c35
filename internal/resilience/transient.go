package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"google.golang.org/api/googleapi"
)

// IsTransient reports whether an error is worth retrying. It recognizes
// retryable BigQuery job failures, network timeouts, and dropped
// connections. Anything else, SQL errors above all, fails immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 408, 429, 500, 502, 503, 504:
			return true
		}
		for _, item := range gerr.Errors {
			switch item.Reason {
			case "backendError", "internalError", "rateLimitExceeded":
				return true
			}
		}
		// A definite API verdict: the service rejected the request.
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Wire-level failures surface as wrapped strings from both drivers.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
		"tls handshake timeout",
		"temporary failure in name resolution",
		"server closed idle connection",
		"unexpected eof",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
