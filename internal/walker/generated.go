package walker

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// generatedMarkers are comment-leading substrings tools commonly emit atop
// files they own, scanned from the first kilobyte of a file.
var generatedMarkers = [][]byte{
	[]byte("Code generated"),
	[]byte("DO NOT EDIT"),
	[]byte("Generated by"),
	[]byte("AUTO-GENERATED"),
}

// generatedDirs are paths conventionally populated entirely by tooling.
var generatedDirs = []string{
	"generated", "gen", ".generated", "dist", "build",
}

// isTestPath reports whether relPath matches a test-file naming convention
// for its language.
func isTestPath(relPath, language string) bool {
	base := filepath.Base(relPath)
	switch language {
	case "go":
		return strings.HasSuffix(base, "_test.go")
	case "python":
		return strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test.py")
	case "javascript", "typescript":
		return strings.Contains(base, ".test.") || strings.Contains(base, ".spec.")
	case "java", "kotlin":
		return strings.HasSuffix(base, "Test.java") || strings.HasSuffix(base, "Test.kt")
	case "rust":
		return strings.Contains(relPath, "/tests/") || strings.HasSuffix(base, "_test.rs")
	default:
		return strings.Contains(strings.ToLower(base), "test")
	}
}

// isGeneratedFile reports whether a file is marked as generated, either by
// a leading marker comment or by living under a conventional generated
// output directory.
func isGeneratedFile(absPath, relPath string) bool {
	for _, dir := range generatedDirs {
		parts := strings.Split(relPath, string(filepath.Separator))
		for _, p := range parts {
			if p == dir {
				return true
			}
		}
	}

	f, err := os.Open(absPath)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return false
	}
	for _, marker := range generatedMarkers {
		if bytes.Contains(buf[:n], marker) {
			return true
		}
	}
	return false
}
