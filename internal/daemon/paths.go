package daemon

import (
	"os"
	"path/filepath"
)

// EnvDataHome overrides the data directory described in §6.1.
const EnvDataHome = "GREPPY_HOME"

// EnvEndpoint overrides the daemon's socket path (§6.4's "optional
// endpoint path"), independent of EnvDataHome.
const EnvEndpoint = "GREPPY_ENDPOINT"

const (
	registryFileName = "projects.json"
	indexesDirName   = "indexes"
	pidFileName      = "daemon.pid"
	socketFileName   = "daemon.sock"
	configFileName   = "config.toml"
	metricsFileName  = "telemetry.db"
)

// DataHome resolves the user's data directory: GREPPY_HOME if set,
// otherwise a platform-appropriate default under the user's home
// directory.
func DataHome() (string, error) {
	if home := os.Getenv(EnvDataHome); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".greppy"), nil
}

// RegistryPath returns the path to the project registry file.
func RegistryPath(dataHome string) string {
	return filepath.Join(dataHome, registryFileName)
}

// IndexDir returns the directory for one project's index, named by its
// 64-bit path hash (§4.1).
func IndexDir(dataHome, hash string) string {
	return filepath.Join(dataHome, indexesDirName, hash)
}

// PIDFilePath returns the path to the daemon's pidfile.
func PIDFilePath(dataHome string) string {
	return filepath.Join(dataHome, pidFileName)
}

// SocketPath returns the path to the daemon's POSIX endpoint.
func SocketPath(dataHome string) string {
	return filepath.Join(dataHome, socketFileName)
}

// ResolveSocketPath is SocketPath, overridden by EnvEndpoint when set.
func ResolveSocketPath(dataHome string) string {
	if endpoint := os.Getenv(EnvEndpoint); endpoint != "" {
		return endpoint
	}
	return SocketPath(dataHome)
}

// ConfigPath returns the path to the optional configuration file.
func ConfigPath(dataHome string) string {
	return filepath.Join(dataHome, configFileName)
}

// MetricsDBPath returns the path to the SQLite database that the query
// telemetry collector flushes its counts to.
func MetricsDBPath(dataHome string) string {
	return filepath.Join(dataHome, metricsFileName)
}

// EnsureDataHome creates the data directory (and its indexes
// subdirectory) with owner-only permissions.
func EnsureDataHome(dataHome string) error {
	if err := os.MkdirAll(filepath.Join(dataHome, indexesDirName), 0o700); err != nil {
		return err
	}
	return nil
}
