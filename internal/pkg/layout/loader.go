package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadDir reads every .yaml/.yml file under path (sorted by filename, so
// numeric prefixes control registration order) and returns the schema texts.
// A missing directory is not an error, there is simply nothing to load.
func LoadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read layout directory %q: %w", path, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var texts []string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(path, name))
		if err != nil {
			return nil, fmt.Errorf("cannot read layout file %q: %w", name, err)
		}
		texts = append(texts, string(data))
	}
	return texts, nil
}
