package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, text string) {
		assert.Equal(t, nil, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
	}
	write("10-gamepad.yaml", "name: Gamepad")
	write("00-base.yml", "name: Base")
	write("readme.txt", "not a layout")

	texts, err := LoadDir(dir)
	assert.Equal(t, nil, err)
	// sorted by filename, non-yaml files skipped
	assert.Equal(t, []string{"name: Base", "name: Gamepad"}, texts)
}

func TestLoadDirMissing(t *testing.T) {
	texts, err := LoadDir(filepath.Join(t.TempDir(), "nothing"))
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(texts))
}
