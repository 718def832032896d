package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gofrs/flock"
)

// PIDFile guards daemon-singleton startup with an exclusive advisory
// lock on a well-known pidfile, per §4.8.1: a second daemon process
// must refuse to start rather than race the first for the socket.
type PIDFile struct {
	path string
	lock *flock.Flock
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path, lock: flock.New(path)}
}

// Path returns the pidfile path.
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire takes an exclusive, non-blocking lock on the pidfile and
// writes the current process's PID into it. If another live daemon
// already holds the lock, Acquire fails without blocking.
func (p *PIDFile) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("create pidfile directory: %w", err)
	}

	locked, err := p.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock pidfile: %w", err)
	}
	if !locked {
		pid, _ := p.Read()
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}

	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		_ = p.lock.Unlock()
		return fmt.Errorf("write pidfile: %w", err)
	}
	return nil
}

// Release unlocks and removes the pidfile. Safe to call even if Acquire
// was never called or already failed.
func (p *PIDFile) Release() error {
	unlockErr := p.lock.Unlock()
	removeErr := os.Remove(p.path)
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return fmt.Errorf("remove pidfile: %w", removeErr)
	}
	if unlockErr != nil {
		return fmt.Errorf("unlock pidfile: %w", unlockErr)
	}
	return nil
}

// Read returns the PID currently recorded in the pidfile.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, fmt.Errorf("read pidfile: %w", err)
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("invalid pidfile contents: %w", err)
	}
	return pid, nil
}

// Locked reports whether another process currently holds the lock, and
// if so, the PID it recorded. It does not disturb p's own lock state:
// it probes with a fresh flock handle on the same path.
func (p *PIDFile) Locked() (bool, int) {
	probe := flock.New(p.path)
	locked, err := probe.TryLock()
	if err != nil {
		return false, 0
	}
	if locked {
		_ = probe.Unlock()
		return false, 0
	}
	pid, _ := p.Read()
	return true, pid
}

// Signal sends a signal to the process recorded in the pidfile.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := process.Signal(sig); err != nil {
		return fmt.Errorf("signal process %d: %w", pid, err)
	}
	return nil
}
