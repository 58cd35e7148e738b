package uio_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptime-induestries/uiotest/pkg/uio"
)

func writeAttr(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content+"\n"), 0o644))
}

func TestResolvePath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		device   string
		expected string
	}{
		{"0", "/dev/uio0"},
		{"uio3", "/dev/uio3"},
		{"/dev/uio1", "/dev/uio1"},
		{"uiox", "uiox"},
		{"./uio0", "./uio0"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, uio.ResolvePath(tc.device), tc.device)
	}
}

// Not parallel: swaps the package level sysfs root
func TestLookup(t *testing.T) {
	root := t.TempDir()
	orig := uio.SysfsRoot
	uio.SysfsRoot = root
	t.Cleanup(func() { uio.SysfsRoot = orig })

	dir := filepath.Join(root, "uio0")
	writeAttr(t, filepath.Join(dir, "name"), "gpio")
	writeAttr(t, filepath.Join(dir, "version"), "devicetree")
	writeAttr(t, filepath.Join(dir, "maps", "map0", "name"), "gpio@41200000")
	writeAttr(t, filepath.Join(dir, "maps", "map0", "addr"), "0x41200000")
	writeAttr(t, filepath.Join(dir, "maps", "map0", "size"), "0x00010000")

	info, err := uio.Lookup("/dev/uio0")
	require.NoError(t, err)
	assert.Equal(t, "uio0", info.Device)
	assert.Equal(t, "gpio", info.Name)
	assert.Equal(t, "devicetree", info.Version)
	require.Len(t, info.Maps, 1)
	assert.Equal(t, uio.MapInfo{Name: "gpio@41200000", Addr: 0x41200000, Size: 0x10000}, info.Maps[0])

	_, err = uio.Lookup("/dev/uio7")
	assert.ErrorIs(t, err, os.ErrNotExist)

	writeAttr(t, filepath.Join(dir, "maps", "map1", "addr"), "bogus")
	_, err = uio.Lookup("/dev/uio0")
	assert.ErrorContains(t, err, "invalid addr")
}
