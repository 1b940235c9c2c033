package scan

import (
	"fmt"
	"io/fs"
	"os"
	"strings"
)

const defaultMaxDepth = 10

// RootFS is the filesystem surface a [Runner] operates within. It is
// implemented by [os.Root], which confines all access to the directory tree
// rooted at its name.
type RootFS interface {
	Close() error
	Name() string
	Open(name string) (*os.File, error)
	OpenFile(name string, flag int, perm fs.FileMode) (*os.File, error)
	Stat(name string) (fs.FileInfo, error)
	FS() fs.FS
}

// listFiles collects file paths under dir, descending at most maxDepth
// directory levels (0 means no limit). Dotfiles and dot-directories are
// skipped, so hidden state like .git never participates in rule matching or
// file watching.
func listFiles(fsys fs.FS, dir string, maxDepth uint) ([]string, error) {
	var files []string

	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			if maxDepth > 0 && pathDepth(dir, path) >= maxDepth {
				return fs.SkipDir
			}

			return nil
		}

		files = append(files, path)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", dir, err)
	}

	return files, nil
}

// pathDepth returns the number of path segments below root. Entries directly
// inside root are at depth 1.
func pathDepth(root, path string) uint {
	if root != "." {
		path = strings.TrimPrefix(path, root)
	}

	path = strings.Trim(path, "/")
	if path == "" {
		return 0
	}

	return uint(strings.Count(path, "/")) + 1
}
