package venue

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var menuExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// MenuImages lists the image files under dir/slug in name order. A missing
// folder yields nothing.
func MenuImages(dir, slug string) []string {
	folder := filepath.Join(dir, filepath.Base(slug))
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !menuExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		out = append(out, filepath.Join(folder, e.Name()))
	}
	sort.Strings(out)
	return out
}
