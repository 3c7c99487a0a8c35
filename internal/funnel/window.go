package funnel

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ParseWindow parses a funnel window such as "45s", "30m", "8h" or "7d".
// Composite Go duration forms like "1h30m" are accepted as well. The value
// is not range-checked here; FunnelDefinition.Validate rejects non-positive
// windows.
func ParseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, eris.Wrap(ErrValidation, "funnel: empty window")
	}
	if n, err := strconv.Atoi(s[:len(s)-1]); err == nil {
		switch s[len(s)-1] {
		case 'd':
			return time.Duration(n) * 24 * time.Hour, nil
		case 'h':
			return time.Duration(n) * time.Hour, nil
		case 'm':
			return time.Duration(n) * time.Minute, nil
		case 's':
			return time.Duration(n) * time.Second, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, eris.Wrapf(ErrValidation, "funnel: parse window %q", s)
	}
	return d, nil
}
