package walker

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SubmoduleInfo is one entry parsed from a project's .gitmodules file.
type SubmoduleInfo struct {
	Name        string
	Path        string
	URL         string
	Initialized bool
}

// DiscoverSubmodules parses absRoot/.gitmodules and reports which
// submodules have been checked out locally. It returns (nil, nil) when
// the project has no .gitmodules file.
func DiscoverSubmodules(absRoot string) ([]SubmoduleInfo, error) {
	data, err := os.ReadFile(filepath.Join(absRoot, ".gitmodules"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	submodules, err := parseGitmodules(data)
	if err != nil {
		return nil, err
	}
	for i := range submodules {
		submodules[i].Initialized = isInitialized(filepath.Join(absRoot, submodules[i].Path))
	}
	return submodules, nil
}

func parseGitmodules(content []byte) ([]SubmoduleInfo, error) {
	var submodules []SubmoduleInfo
	var current *SubmoduleInfo

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[submodule") {
			if current != nil && current.Path != "" {
				submodules = append(submodules, *current)
			}
			current = &SubmoduleInfo{Name: extractSubmoduleName(line)}
			continue
		}
		if current == nil {
			continue
		}

		key, value := parseKeyValue(line)
		switch key {
		case "path":
			current.Path = value
		case "url":
			current.URL = value
		}
	}
	if current != nil && current.Path != "" {
		submodules = append(submodules, *current)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning .gitmodules: %w", err)
	}
	return submodules, nil
}

func extractSubmoduleName(line string) string {
	start := strings.Index(line, "\"")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(line, "\"")
	if end <= start {
		return ""
	}
	return line[start+1 : end]
}

func parseKeyValue(line string) (key, value string) {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// isInitialized reports whether a submodule directory has any content
// besides its own .git file, i.e. `git submodule update` has run.
func isInitialized(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.Name() != ".git" {
			return true
		}
	}
	return false
}
