package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPChecker reports whether something listens on Address
type TCPChecker struct {
	Address string

	// Timeout is the connection timeout (default: 5 seconds)
	Timeout time.Duration
}

// NewTCPChecker creates a new TCP health checker
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{
		Address: address,
		Timeout: 5 * time.Second,
	}
}

// Check dials Address once. A refused connection counts as a probe that
// ran and failed with exit code 1.
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	dialer := &net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		r := failed(start, true, fmt.Sprintf("nothing listening on %s: %v", t.Address, err))
		r.ExitCode = 1
		return r
	}
	defer conn.Close()

	return Result{
		Healthy:   true,
		Ran:       true,
		Message:   fmt.Sprintf("%s is accepting connections", t.Address),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}

// WithTimeout sets the connection timeout
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}
