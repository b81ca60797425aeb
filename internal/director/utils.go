package director

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ivlev/img2video/internal/system"
)

// GenerateManifestPath creates a timestamped manifest filename in dir
func GenerateManifestPath(dir string) string {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(dir, fmt.Sprintf("project_%s.yaml", timestamp))
}

// FindLatestManifest finds the most recent manifest file in dir
func FindLatestManifest(dir string) (string, error) {
	return system.FindLatest(dir, ".yaml", ".yml")
}
