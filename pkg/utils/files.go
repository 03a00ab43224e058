package utils

import (
	"os"
	"path/filepath"
)

// GetPathInfo resolves relPath and reports the directory holding the
// sources: relPath itself for a directory, its parent for a file.
func GetPathInfo(relPath string) (fullPath string, sourceDir string, isDir bool, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", false, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return "", "", false, err
	}
	if info.IsDir() {
		return fullPath, fullPath, true, nil
	}
	return fullPath, filepath.Dir(fullPath), false, nil
}

// ResolveDir returns p relative to base. An empty p yields base.
func ResolveDir(base, p string) string {
	switch {
	case p == "":
		return base
	case filepath.IsAbs(p):
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
