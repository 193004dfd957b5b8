// Package supervise covers the process-level fault handling around the
// render loop: waiting for connectivity at boot and restarting on faults.
package supervise

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	appLog "ledbar/internal/log"
)

// RestartDelay is how long a faulted process waits before exiting so the
// service manager can bring it back.
const RestartDelay = 5 * time.Second

// Restarter abandons the current process after a fault.
type Restarter interface {
	Restart(reason string, err error)
}

// ProcessRestarter logs, waits RestartDelay, then exits non-zero. The
// systemd unit runs with Restart=always, so exit means restart.
type ProcessRestarter struct {
	Delay time.Duration
	// Exit defaults to os.Exit. Tests replace it.
	Exit func(code int)
	// Before runs after the delay and just before exit; used to blank the
	// strip and flush logs.
	Before func()
}

// Restart implements Restarter. With the default Exit it does not return.
func (r ProcessRestarter) Restart(reason string, err error) {
	delay := r.Delay
	if delay <= 0 {
		delay = RestartDelay
	}
	appLog.Error("fatal fault, restarting", err, "reason", reason, "in", delay)
	time.Sleep(delay)
	if r.Before != nil {
		r.Before()
	}
	exit := r.Exit
	if exit == nil {
		exit = os.Exit
	}
	exit(1)
}

// ErrNoNetwork is returned when the probe never succeeded.
var ErrNoNetwork = errors.New("supervise: network unreachable")

// Dialer opens a probe connection. net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// WaitNetwork dials probe (host:port) until a TCP connection succeeds,
// making at most attempts tries pause apart.
func WaitNetwork(ctx context.Context, d Dialer, probe string, attempts int, pause time.Duration) error {
	if d == nil {
		d = &net.Dialer{Timeout: 3 * time.Second}
	}
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, err := d.DialContext(ctx, "tcp", probe)
		if err == nil {
			_ = conn.Close()
			appLog.Info("network up", "probe", probe, "attempt", i)
			return nil
		}
		lastErr = err
		appLog.Debug("network probe failed", "probe", probe, "attempt", i, "err", err)
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrNoNetwork, attempts, lastErr)
}
