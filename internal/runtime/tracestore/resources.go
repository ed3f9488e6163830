package tracestore

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
)

// DefaultDisconnectPattern matches driver messages for dropped connections.
var DefaultDisconnectPattern = regexp.MustCompile(`(?i)(server closed the connection unexpectedly|connection reset by peer|broken pipe|bad connection|connection is already closed)`)

// SetDisconnectPattern overrides the messages treated as dropped connections.
func (s *SQLStore) SetDisconnectPattern(pattern *regexp.Regexp) {
	s.disconnects = pattern
}

// Verify checks that the pool can reach the database.
func (s *SQLStore) Verify(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Disconnected reports whether err signals a dropped database connection.
func (s *SQLStore) Disconnected(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	pattern := s.disconnects
	if pattern == nil {
		pattern = DefaultDisconnectPattern
	}
	return pattern.MatchString(err.Error())
}

// Recover drops idle connections so the next query dials afresh.
func (s *SQLStore) Recover(ctx context.Context) error {
	s.db.SetMaxIdleConns(0)
	s.db.SetMaxIdleConns(s.maxIdle)
	return s.db.PingContext(ctx)
}
