package util

import (
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
)

// StringListContains returns true if the list of strings contains item.
func StringListContains(list []string, item string) bool {
	if list != nil {
		for i := range list {
			if list[i] == item {
				return true
			}
		}
	}
	return false
}

// ExpandTilde expands a leading tilde in filePath to the current
// user's home directory. Paths without a leading tilde are returned
// unchanged.
func ExpandTilde(filePath string) (string, error) {
	if !strings.HasPrefix(filePath, "~") {
		return filePath, nil
	}
	usr, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("Cannot expand %s: %v", filePath, err)
	}
	return filepath.Join(usr.HomeDir, filePath[1:]), nil
}

// FileExists returns true if the file at path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LooksSafeToDelete returns true if filePath is absolute, has at least
// minLength characters, and at least minSeparators path separators.
// It's a sanity check against deleting "/" or a home directory.
func LooksSafeToDelete(filePath string, minLength, minSeparators int) bool {
	if !filepath.IsAbs(filePath) {
		return false
	}
	separators := strings.Count(filePath, string(os.PathSeparator))
	return len(filePath) >= minLength && separators >= minSeparators
}

// TestsAreRunning returns true when code is running under go test.
func TestsAreRunning() bool {
	return flag.Lookup("test.v") != nil
}

// ProjectRoot returns the absolute path of the project root directory.
func ProjectRoot() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Dir(filepath.Dir(thisFile))
}

// Truncate shortens s to at most maxLen characters, adding an ellipsis
// when it cuts anything off.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen || maxLen < 4 {
		return s
	}
	return s[:maxLen-3] + "..."
}
