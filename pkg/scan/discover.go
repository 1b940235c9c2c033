package scan

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"

	"github.com/macropower/skan/pkg/execs"
)

// manifestExts lists the file extensions treated as Kubernetes manifests.
var manifestExts = []string{".yaml", ".yml"}

// IsManifest reports whether path has a Kubernetes manifest extension.
func IsManifest(path string) bool {
	return slices.Contains(manifestExts, filepath.Ext(path))
}

// discoverManifests walks the full tree under path and returns every manifest
// file, sorted by path. If path is itself a file, it is returned when it has a
// manifest extension. Paths matching the exclude pattern are dropped.
//
// Note that discovery is intentionally broader than rule matching: it does not
// skip dotfiles and has no depth limit, since the scanner will read the same
// tree.
func discoverManifests(fsys fs.FS, path string, exclude *execs.LazyRegexp) ([]string, error) {
	files := []string{}

	err := fs.WalkDir(fsys, path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsManifest(p) {
			return nil
		}

		if exclude != nil {
			re, err := exclude.Get()
			if err != nil {
				return fmt.Errorf("exclude pattern: %w", err)
			}
			if re.MatchString(p) {
				return nil
			}
		}

		files = append(files, p)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", path, err)
	}

	slices.Sort(files)

	return files, nil
}
