package utils

import (
	"path/filepath"
)

type GlobalOptions interface {
	GetBasePath() string
}

// GetPath resolves path against the base directory unless it's absolute.
func GetPath(path string, g GlobalOptions) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(g.GetBasePath(), path)
}

// BasePath is a GlobalOptions backed by a plain directory name.
type BasePath string

func (b BasePath) GetBasePath() string { return string(b) }
