package local

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// checkPathTraversal validates that target is root or a child of root using the
// local path separator.
func checkPathTraversal(root, target string) error {
	cleanRoot := filepath.Clean(root)
	cleanTarget := filepath.Clean(target)

	if cleanRoot == cleanTarget {
		return nil
	}

	prefix := cleanRoot + string(os.PathSeparator)
	if strings.HasSuffix(cleanRoot, string(os.PathSeparator)) {
		prefix = cleanRoot
	}

	if !strings.HasPrefix(cleanTarget, prefix) {
		return fmt.Errorf("illegal file path: %s is not within %s", target, root)
	}

	return nil
}
