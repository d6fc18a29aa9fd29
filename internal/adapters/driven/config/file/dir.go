package file

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppDirName is the directory under the user's home holding config, prompts and data.
const AppDirName = ".recall"

// DefaultDir returns ~/.recall.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, AppDirName), nil
}
