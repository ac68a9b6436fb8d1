package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	testingpkg "github.com/aristath/folio/internal/testing"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Upload(_ context.Context, name string, body io.Reader) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = data
	return nil
}

func (m *memoryStore) List(_ context.Context) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ObjectInfo, 0, len(m.objects))
	for k, v := range m.objects {
		out = append(out, ObjectInfo{Key: k, SizeBytes: int64(len(v))})
	}
	return out, nil
}

func (m *memoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	return nil
}

func (m *memoryStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type backupFixture struct {
	service *BackupService
	dir     string
	folio   *database.DB
	events  []*events.Event
	clock   time.Time
}

func newBackupFixture(t *testing.T, store ObjectStore, retention int) *backupFixture {
	t.Helper()

	folio, cleanupFolio := testingpkg.NewTestDB(t, "folio")
	t.Cleanup(cleanupFolio)
	cacheDB, cleanupCache := testingpkg.NewTestDB(t, "cache")
	t.Cleanup(cleanupCache)

	log := zerolog.Nop()
	bus := events.NewBus(log)
	f := &backupFixture{
		dir:   filepath.Join(t.TempDir(), "backups"),
		folio: folio,
		clock: time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC),
	}
	bus.Subscribe(func(e *events.Event) { f.events = append(f.events, e) }, events.BackupCompleted)

	f.service = NewBackupService(
		[]*database.DB{folio, cacheDB},
		f.dir,
		store,
		retention,
		"1.2.3",
		events.NewManager(bus, log),
		log,
	)
	f.service.now = func() time.Time { return f.clock }
	return f
}

func (f *backupFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = body
	}
	return files
}

func TestCreateLocalOnly(t *testing.T) {
	f := newBackupFixture(t, nil, 3)
	testingpkg.SeedUser(t, f.folio.Conn(), "alice", "user")

	info, err := f.service.Create(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "folio-backup-2026-03-01-020000.tar.gz", info.Filename)
	assert.False(t, info.Uploaded)
	assert.Greater(t, info.SizeBytes, int64(0))
	assert.False(t, f.service.RemoteEnabled())

	data, err := os.ReadFile(filepath.Join(f.dir, info.Filename))
	require.NoError(t, err)
	files := readArchive(t, data)
	require.Contains(t, files, "folio.db")
	require.Contains(t, files, "cache.db")
	require.Contains(t, files, metadataFilename)

	var meta BackupMetadata
	require.NoError(t, json.Unmarshal(files[metadataFilename], &meta))
	assert.Equal(t, "1.2.3", meta.AppVersion)
	require.Len(t, meta.Databases, 2)
	assert.Equal(t, "folio", meta.Databases[0].Name)
	assert.Equal(t, int64(len(files["folio.db"])), meta.Databases[0].SizeBytes)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, meta.Databases[0].Checksum)

	// The copy must be a valid database readable by an independent SQLite build.
	restored := filepath.Join(t.TempDir(), "restored.db")
	require.NoError(t, os.WriteFile(restored, files["folio.db"], 0644))
	conn, err := sql.Open("sqlite3", restored)
	require.NoError(t, err)
	defer conn.Close()

	var integrity string
	require.NoError(t, conn.QueryRow("PRAGMA integrity_check").Scan(&integrity))
	assert.Equal(t, "ok", integrity)
	var users int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM users").Scan(&users))
	assert.Equal(t, 1, users)

	require.Len(t, f.events, 1)
	data2 := f.events[0].Data.(*events.BackupCompletedData)
	assert.Equal(t, info.Filename, data2.Filename)
	assert.Empty(t, f.events[0].UserID)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging directory should be removed")
}

func TestCreateUploadsAndPrunes(t *testing.T) {
	store := newMemoryStore()
	f := newBackupFixture(t, store, 2)

	var names []string
	for i := 0; i < 4; i++ {
		info, err := f.service.Create(context.Background())
		require.NoError(t, err)
		assert.True(t, info.Uploaded)
		names = append(names, info.Filename)
		f.advance(time.Hour)
	}

	assert.Equal(t, []string{names[2], names[3]}, store.keys())

	listing, err := f.service.List(context.Background())
	require.NoError(t, err)
	assert.True(t, listing.RemoteEnabled)
	require.Len(t, listing.Local, 2)
	require.Len(t, listing.Remote, 2)
	assert.Equal(t, names[3], listing.Local[0].Filename)
	assert.Equal(t, names[2], listing.Local[1].Filename)
	assert.Equal(t, names[3], listing.Remote[0].Filename)
	assert.Equal(t, int64(1), listing.Local[1].AgeHours)
}

func TestCreateUploadFailure(t *testing.T) {
	store := newMemoryStore()
	store.uploadErr = errors.New("bucket unavailable")
	f := newBackupFixture(t, store, 3)

	_, err := f.service.Create(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")
	assert.Empty(t, f.events)
}

func TestCreateRejectsConcurrentRun(t *testing.T) {
	f := newBackupFixture(t, nil, 3)

	f.service.mu.Lock()
	_, err := f.service.Create(context.Background())
	f.service.mu.Unlock()

	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestListIgnoresForeignFiles(t *testing.T) {
	f := newBackupFixture(t, nil, 3)
	require.NoError(t, os.MkdirAll(f.dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "folio-backup-garbage.tar.gz"), []byte("x"), 0644))

	listing, err := f.service.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, listing.Local)
	assert.Empty(t, listing.Remote)
	assert.False(t, listing.RemoteEnabled)
}

func TestListMissingDirectory(t *testing.T) {
	f := newBackupFixture(t, nil, 3)
	listing, err := f.service.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, listing.Local)
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "", normalizePrefix(""))
	assert.Equal(t, "backups/", normalizePrefix("backups"))
	assert.Equal(t, "folio/backups/", normalizePrefix("/folio/backups/"))
}

func TestParseArchiveName(t *testing.T) {
	ts, ok := parseArchiveName("folio-backup-2026-01-08-143022.tar.gz")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 8, 14, 30, 22, 0, time.UTC), ts)

	_, ok = parseArchiveName("notes.tar.gz")
	assert.False(t, ok)
}
