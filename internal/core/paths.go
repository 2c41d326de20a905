package core

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type Paths struct {
	HomeDir string
	WorkDir string
	DataDir string
	LogFile string
}

var defaultPaths *Paths

func ensureDefaultPaths() {
	if defaultPaths == nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			panic(err)
		}
		workDir, err := os.Getwd()
		if err != nil {
			workDir = "."
		}

		defaultPaths = &Paths{
			HomeDir: homeDir,
			WorkDir: workDir,
			DataDir: filepath.Join(homeDir, ".local", "share", "dya"),
			LogFile: filepath.Join(homeDir, ".local", "share", "dya", "dya.zst"),
		}

		err = os.MkdirAll(defaultPaths.DataDir, 0755)
		if err != nil {
			panic(err)
		}
	}
}

func HomeDir() string {
	ensureDefaultPaths()
	return defaultPaths.HomeDir
}

func DataDir() string {
	ensureDefaultPaths()
	return defaultPaths.DataDir
}

func LogFile() string {
	ensureDefaultPaths()
	return defaultPaths.LogFile
}

func LogDir() string {
	ensureDefaultPaths()
	return defaultPaths.DataDir
}

// ConfigFile returns the first existing of ./.dya.yaml, ./dya.yaml,
// ~/.dya.yaml and ~/dya.yaml, falling back to ~/.dya.yaml.
func ConfigFile() string {
	return discover(".yaml")
}

// CacheFile is ConfigFile for the .json cache document.
func CacheFile() string {
	return discover(".json")
}

func discover(ext string) string {
	ensureDefaultPaths()

	candidates := []string{
		filepath.Join(defaultPaths.WorkDir, ".dya"+ext),
		filepath.Join(defaultPaths.WorkDir, "dya"+ext),
		filepath.Join(defaultPaths.HomeDir, ".dya"+ext),
		filepath.Join(defaultPaths.HomeDir, "dya"+ext),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return candidates[2]
}

func isLogFile(name string) bool {
	return strings.HasPrefix(name, "dya.") && strings.HasSuffix(name, ".zst")
}

func CleanLogFiles() error {
	ensureDefaultPaths()

	entries, err := os.ReadDir(defaultPaths.DataDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !isLogFile(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(defaultPaths.DataDir, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}

// RotateLogFiles keeps the 10 most recently modified dya.*.zst files.
func RotateLogFiles() error {
	ensureDefaultPaths()

	entries, err := os.ReadDir(defaultPaths.DataDir)
	if err != nil {
		return err
	}

	var logFiles []logFileInfo
	for _, entry := range entries {
		if entry.IsDir() || !isLogFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		logFiles = append(logFiles, logFileInfo{
			path:    filepath.Join(defaultPaths.DataDir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	const maxLogFiles = 10
	if len(logFiles) <= maxLogFiles {
		return nil
	}

	sort.Slice(logFiles, func(i, j int) bool {
		return logFiles[i].modTime.After(logFiles[j].modTime)
	})

	for i := maxLogFiles; i < len(logFiles); i++ {
		if err := os.Remove(logFiles[i].path); err != nil {
			return err
		}
	}

	return nil
}

type logFileInfo struct {
	path    string
	modTime time.Time
}
