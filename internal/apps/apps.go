// Package apps lists installed application names. The suggestion engine
// matches them against free text and the CLI offers them for apps fields.
package apps

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"automata/pkg/logx"
)

// DefaultDirs returns the application folders searched on goos.
func DefaultDirs(goos, home string) []string {
	switch goos {
	case "darwin":
		dirs := []string{"/Applications", "/System/Applications"}
		if home != "" {
			dirs = append(dirs, filepath.Join(home, "Applications"))
		}
		return dirs
	case "linux":
		dirs := []string{"/usr/share/applications", "/usr/local/share/applications"}
		if home != "" {
			dirs = append(dirs, filepath.Join(home, ".local", "share", "applications"))
		}
		return dirs
	default:
		return nil
	}
}

// Discover scans dirs for "*.app" bundles and "*.desktop" entries and
// returns their display names, deduplicated and sorted case-insensitively.
// Missing or unreadable folders are skipped.
func Discover(dirs []string, log logx.Logger) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Debug("app dir unreadable", logx.String("dir", dir), logx.Err(err))
			}
			continue
		}
		for _, e := range entries {
			name := e.Name()
			switch {
			case strings.HasSuffix(name, ".app"):
				add(strings.TrimSuffix(name, ".app"))
			case strings.HasSuffix(name, ".desktop") && !e.IsDir():
				if n, ok := desktopName(filepath.Join(dir, name)); ok {
					add(n)
				}
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i]), strings.ToLower(out[j])
		if a != b {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}

// desktopName reads Name= from the [Desktop Entry] group. Entries marked
// NoDisplay or Hidden are skipped. A file without Name= falls back to its
// base name.
func desktopName(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	fallback := strings.TrimSuffix(filepath.Base(path), ".desktop")
	name := ""
	inEntry := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "[") {
			inEntry = line == "[Desktop Entry]"
			continue
		}
		if !inEntry {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Name":
			if name == "" {
				name = strings.TrimSpace(val)
			}
		case "NoDisplay", "Hidden":
			if strings.EqualFold(strings.TrimSpace(val), "true") {
				return "", false
			}
		}
	}
	if name == "" {
		name = fallback
	}
	return name, true
}
