package runner

import (
	"fmt"
	"os"
	"path/filepath"
)

// LookPath finds an executable named name in a colon-separated search path.
// Unlike exec.LookPath it searches the given path rather than the process
// PATH, so tools can be located on a build overlay's PATH.
func LookPath(name, searchPath string) (string, error) {
	for _, dir := range filepath.SplitList(searchPath) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode().Perm()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not find %s in path [%s]", name, searchPath)
}
