package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("syntax error at [3:7]"), false},
		{"backend unavailable", &googleapi.Error{Code: 503}, true},
		{"rate limited", &googleapi.Error{Code: 429}, true},
		{"bad request", &googleapi.Error{Code: 400}, false},
		{"access denied", &googleapi.Error{Code: 403, Message: "connection reset by peer"}, false},
		{
			"job backend error",
			&googleapi.Error{Code: 200, Errors: []googleapi.ErrorItem{{Reason: "backendError"}}},
			true,
		},
		{
			"job invalid query",
			&googleapi.Error{Code: 200, Errors: []googleapi.ErrorItem{{Reason: "invalidQuery"}}},
			false,
		},
		{"wrapped api error", fmt.Errorf("run job: %w", &googleapi.Error{Code: 500}), true},
		{"dns timeout", &net.DNSError{IsTimeout: true}, true},
		{"conn reset syscall", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"conn refused syscall", syscall.ECONNREFUSED, true},
		{"reset by peer string", errors.New("read tcp 10.0.0.1:5432: connection reset by peer"), true},
		{"broken pipe string", errors.New("write: broken pipe"), true},
		{"io timeout string", errors.New("dial tcp: i/o timeout"), true},
		{"unexpected eof", errors.New("unexpected EOF"), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}
