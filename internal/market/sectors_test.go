package market

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSectorFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "sectors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestSectorMapClassifies(t *testing.T) {
	path := writeSectorFile(t, t.TempDir(), "AAPL: Technology\nspy: Index/ETF\n")

	sectors, err := NewSectorMap(path)
	require.NoError(t, err)

	assert.Equal(t, "Technology", sectors.SectorOf("AAPL"))
	assert.Equal(t, "Technology", sectors.SectorOf(" aapl "))
	assert.Equal(t, "Index/ETF", sectors.SectorOf("SPY"))
	assert.Equal(t, SectorUnknown, sectors.SectorOf("ZZZZ"))
}

func TestSectorMapMissingFile(t *testing.T) {
	_, err := NewSectorMap(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestSectorMapMalformedFile(t *testing.T) {
	path := writeSectorFile(t, t.TempDir(), "AAPL: [not, a, string]\n")
	_, err := NewSectorMap(path)
	require.Error(t, err)
}

func TestEmptySectorMap(t *testing.T) {
	sectors := NewEmptySectorMap()
	assert.Equal(t, SectorUnknown, sectors.SectorOf("AAPL"))
}

func TestSectorMapWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeSectorFile(t, dir, "AAPL: Technology\n")

	sectors, err := NewSectorMap(path)
	require.NoError(t, err)
	require.NoError(t, sectors.Watch())
	t.Cleanup(func() { _ = sectors.Close() })

	require.NoError(t, os.WriteFile(path, []byte("AAPL: Energy\n"), 0o644))

	assert.Eventually(t, func() bool {
		return sectors.SectorOf("AAPL") == "Energy"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestStaticSectors(t *testing.T) {
	sectors := StaticSectors{"XOM": "Energy"}
	assert.Equal(t, "Energy", sectors.SectorOf("XOM"))
	assert.Equal(t, SectorUnknown, sectors.SectorOf("AAPL"))
}
