package server

import (
	"fmt"
	"os"
	"path/filepath"
)

const staticDirName = "static"

// ResolveStaticDir locates the browser client. An explicit override wins;
// otherwise a static/ directory next to the working directory or the binary
// is used.
func ResolveStaticDir(override string) (string, error) {
	if override != "" {
		info, err := os.Stat(override)
		if err != nil {
			return "", fmt.Errorf("resolve static dir: %w", err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("resolve static dir: %s is not a directory", override)
		}
		return filepath.Abs(override)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve static dir: %w", err)
	}
	if dir, ok := resolveStaticDirFrom(cwd); ok {
		return dir, nil
	}
	exePath, err := os.Executable()
	if err == nil {
		base := filepath.Dir(exePath)
		if dir, ok := resolveStaticDirFrom(base); ok {
			return dir, nil
		}
	}
	return "", fmt.Errorf("static directory not found")
}

func resolveStaticDirFrom(base string) (string, bool) {
	candidates := []string{
		filepath.Join(base, staticDirName),
		filepath.Join(base, "..", staticDirName),
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if info.IsDir() {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				continue
			}
			return abs, true
		}
	}
	return "", false
}
