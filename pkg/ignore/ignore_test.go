package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Layers(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\n.temp/\ngenerated/\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("# local\nfixtures/\n!generated/\n"), 0o644))

	m, err := NewMatcher(root)
	require.NoError(t, err)

	tests := []struct {
		path    string
		isDir   bool
		ignored bool
	}{
		{"app.log", false, true},
		{"src/deep/debug.log", false, true},
		{".temp", true, true},
		{"fixtures", true, true},
		{"generated", true, false},
		{"node_modules", true, true},
		{"svc/vendor", true, true},
		{".git", true, true},
		{"package.json", false, false},
		{"src", true, false},
		{"", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.ignored, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_NoIgnoreFiles(t *testing.T) {
	m, err := NewMatcher(t.TempDir())
	require.NoError(t, err)
	assert.False(t, m.Match("go.mod", false))
	assert.True(t, m.Match("dist", true))
}
