package sysinfo

import (
	"testing"

	testingpkg "github.com/aristath/folio/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleHost(t *testing.T) {
	h := SampleHost(zerolog.Nop())
	assert.GreaterOrEqual(t, h.CPUPercent, 0.0)
	assert.GreaterOrEqual(t, h.MemoryPercent, 0.0)
	assert.Greater(t, h.Goroutines, 0)
}

func TestDatabases(t *testing.T) {
	folio, _ := testingpkg.NewTestDB(t, "folio")
	cacheDB, _ := testingpkg.NewTestDB(t, "cache")

	infos, total := Databases(zerolog.Nop(), folio, nil, cacheDB)
	require.Len(t, infos, 2)
	assert.Equal(t, "folio", infos[0].Name)
	assert.Equal(t, "cache", infos[1].Name)
	assert.Greater(t, infos[0].Pages, int64(0))
	assert.GreaterOrEqual(t, total, 0.0)
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 12.3, round1(12.34))
	assert.Equal(t, 1.0, toMB(1024*1024))
}
