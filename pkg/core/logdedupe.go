package core

import "sync"

// logOnceKey pairs a call site with a dedupe key, e.g. (site="publish",
// key=agentID), so that repeated warnings about the same condition at the
// same place collapse to a single log line.
type logOnceKey struct {
	site string
	key  string
}

var (
	logOnceMu   sync.Mutex
	logOnceSeen = map[logOnceKey]struct{}{}
)

// LogOnce invokes fn the first time it is called for the given (site, key)
// pair and is a no-op on every subsequent call with the same pair. It
// replaces the scattered "log first time only" atomic-flag idiom with one
// explicit, testable utility.
func LogOnce(site, key string, fn func()) {
	k := logOnceKey{site: site, key: key}

	logOnceMu.Lock()
	_, seen := logOnceSeen[k]
	if !seen {
		logOnceSeen[k] = struct{}{}
	}
	logOnceMu.Unlock()

	if !seen {
		fn()
	}
}

// ResetLogOnce clears dedupe state for a given (site, key) pair, letting the next
// matching call log again. Intended for tests and for explicit
// reconnection windows (e.g. a subscriber reattaching after being gone).
func ResetLogOnce(site, key string) {
	logOnceMu.Lock()
	delete(logOnceSeen, logOnceKey{site: site, key: key})
	logOnceMu.Unlock()
}
