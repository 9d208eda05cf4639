package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// SaveScreenshot writes a full-page screenshot to dir as <prefix>-<unix>.png
// and returns the path. An empty dir disables artifacts.
func SaveScreenshot(dir string, p Page, prefix string) (string, error) {
	if dir == "" || p == nil {
		return "", nil
	}
	b, err := p.Screenshot()
	if err != nil {
		return "", eris.Wrap(err, "browser: screenshot")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "browser: artifacts dir")
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%d.png", prefix, time.Now().UnixNano()))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", eris.Wrap(err, "browser: write screenshot")
	}
	return path, nil
}
