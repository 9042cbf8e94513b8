package node

import (
	"os"
	"path/filepath"
	"strings"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// chainPrefix is the key namespace of one chain's index in the shared
// database.
func chainPrefix(chain string) []byte {
	return []byte("c/" + chain + "/")
}
