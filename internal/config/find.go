package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// AppName is the directory name used under every search root.
const AppName = "barstatus"

// DefaultFile is the configuration loaded when none is given.
const DefaultFile = "config.toml"

// searchDirs returns the directories searched after the name itself, in
// order. It is a variable so tests can point it at temporary directories.
var searchDirs = func() []string {
	return []string{
		filepath.Join(xdg.ConfigHome, AppName),
		filepath.Join(xdg.DataHome, AppName),
		filepath.Join("/usr/share", AppName),
	}
}

// Find locates a file by name. The name is first tried as a path, with ext
// appended when it has no extension; then <dir>/<subdir>/<name> is tried
// for every search directory.
func Find(name, subdir, ext string) (string, bool) {
	name = ExpandPath(name)
	if ext != "" && filepath.Ext(name) == "" {
		name += ext
	}
	if isFile(name) {
		return name, true
	}
	if filepath.IsAbs(name) {
		return "", false
	}

	for _, dir := range searchDirs() {
		path := filepath.Join(dir, subdir, name)
		if isFile(path) {
			return path, true
		}
	}
	return "", false
}

// Dirs returns the search directories joined with subdir, for error
// messages and the check command.
func Dirs(subdir string) []string {
	dirs := searchDirs()
	for i, d := range dirs {
		dirs[i] = filepath.Join(d, subdir)
	}
	return dirs
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
