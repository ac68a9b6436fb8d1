// Package reliability provides database backups and off-site archive storage.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/rs/zerolog"
)

const (
	archivePrefix    = "folio-backup-"
	archiveSuffix    = ".tar.gz"
	archiveTimestamp = "2006-01-02-150405"
	metadataFilename = "backup-metadata.json"
	metadataVersion  = "1"
)

// BackupMetadata is written into every archive next to the database copies.
type BackupMetadata struct {
	Timestamp  time.Time          `json:"timestamp"`
	Version    string             `json:"version"`
	AppVersion string             `json:"app_version"`
	Databases  []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes one database copy inside an archive.
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo describes a backup archive.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
	Uploaded  bool      `json:"uploaded,omitempty"`
}

// Listing groups local and remote archives, newest first.
type Listing struct {
	Local         []BackupInfo `json:"local"`
	Remote        []BackupInfo `json:"remote"`
	RemoteEnabled bool         `json:"remote_enabled"`
}

// BackupService creates, uploads, lists, and prunes backup archives.
// Archives are always written to backupDir; they are uploaded when a store is set.
type BackupService struct {
	databases  []*database.DB
	backupDir  string
	store      ObjectStore
	retention  int
	appVersion string
	events     *events.Manager
	log        zerolog.Logger
	now        func() time.Time

	mu sync.Mutex
}

// NewBackupService creates a new backup service. store may be nil for local-only backups.
// retention is the number of archives kept in each location.
func NewBackupService(
	databases []*database.DB,
	backupDir string,
	store ObjectStore,
	retention int,
	appVersion string,
	eventManager *events.Manager,
	log zerolog.Logger,
) *BackupService {
	if retention < 1 {
		retention = 1
	}
	return &BackupService{
		databases:  databases,
		backupDir:  backupDir,
		store:      store,
		retention:  retention,
		appVersion: appVersion,
		events:     eventManager,
		log:        log.With().Str("service", "backup").Logger(),
		now:        time.Now,
	}
}

// RemoteEnabled reports whether archives are uploaded to object storage.
func (s *BackupService) RemoteEnabled() bool {
	return s.store != nil
}

// Create writes a new archive, uploads it when remote storage is configured,
// and prunes archives beyond retention. Only one backup runs at a time.
func (s *BackupService) Create(ctx context.Context) (*BackupInfo, error) {
	if !s.mu.TryLock() {
		return nil, domain.Conflictf("backup already in progress")
	}
	defer s.mu.Unlock()

	s.log.Info().Msg("Starting backup")
	start := time.Now()
	now := s.now().UTC()

	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	stagingDir, err := os.MkdirTemp(s.backupDir, "staging-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	metadata := BackupMetadata{
		Timestamp:  now,
		Version:    metadataVersion,
		AppVersion: s.appVersion,
		Databases:  make([]DatabaseMetadata, 0, len(s.databases)),
	}
	files := make([]string, 0, len(s.databases)+1)

	for _, db := range s.databases {
		filename := db.Name() + ".db"
		dest := filepath.Join(stagingDir, filename)

		s.log.Debug().Str("database", db.Name()).Msg("Backing up database")
		if err := db.BackupTo(ctx, dest); err != nil {
			return nil, fmt.Errorf("failed to backup %s: %w", db.Name(), err)
		}

		info, err := os.Stat(dest)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s backup: %w", db.Name(), err)
		}
		checksum, err := fileChecksum(dest)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate checksum for %s: %w", db.Name(), err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      db.Name(),
			Filename:  filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		files = append(files, filename)
	}

	if err := writeMetadata(filepath.Join(stagingDir, metadataFilename), metadata); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	files = append(files, metadataFilename)

	name := archivePrefix + now.Format(archiveTimestamp) + archiveSuffix
	archivePath := filepath.Join(s.backupDir, name)
	if err := createArchive(archivePath, stagingDir, files); err != nil {
		os.Remove(archivePath)
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	result := &BackupInfo{
		Filename:  name,
		Timestamp: now,
		SizeBytes: archiveInfo.Size(),
	}

	if s.store != nil {
		if err := s.upload(ctx, archivePath, name); err != nil {
			return nil, err
		}
		result.Uploaded = true
	}

	s.prune(ctx)

	s.log.Info().
		Dur("duration", time.Since(start)).
		Str("archive", name).
		Int64("size_bytes", result.SizeBytes).
		Bool("uploaded", result.Uploaded).
		Msg("Backup completed")

	s.events.Emit("backup", "", &events.BackupCompletedData{
		Filename:  name,
		SizeBytes: result.SizeBytes,
		Uploaded:  result.Uploaded,
	})

	return result, nil
}

func (s *BackupService) upload(ctx context.Context, archivePath, name string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	if err := s.store.Upload(ctx, name, f); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}
	return nil
}

// List returns local archives and, when configured, remote archives.
func (s *BackupService) List(ctx context.Context) (*Listing, error) {
	local, err := s.listLocal()
	if err != nil {
		return nil, err
	}

	listing := &Listing{Local: local, Remote: []BackupInfo{}, RemoteEnabled: s.store != nil}
	if s.store != nil {
		remote, err := s.listRemote(ctx)
		if err != nil {
			return nil, err
		}
		listing.Remote = remote
	}
	return listing, nil
}

func (s *BackupService) listLocal() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []BackupInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	now := s.now()
	out := make([]BackupInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ts, ok := parseArchiveName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, BackupInfo{
			Filename:  e.Name(),
			Timestamp: ts,
			SizeBytes: info.Size(),
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *BackupService) listRemote(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote backups: %w", err)
	}

	now := s.now()
	out := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		ts, ok := parseArchiveName(obj.Key)
		if !ok {
			s.log.Debug().Str("key", obj.Key).Msg("Skipping unrecognised object")
			continue
		}
		out = append(out, BackupInfo{
			Filename:  obj.Key,
			Timestamp: ts,
			SizeBytes: obj.SizeBytes,
			AgeHours:  int64(now.Sub(ts).Hours()),
			Uploaded:  true,
		})
	}
	sortNewestFirst(out)
	return out, nil
}

// prune removes archives beyond retention. Failures are logged; the backup itself succeeded.
func (s *BackupService) prune(ctx context.Context) {
	local, err := s.listLocal()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to list local backups for pruning")
	}
	for i := s.retention; i < len(local); i++ {
		if err := os.Remove(filepath.Join(s.backupDir, local[i].Filename)); err != nil {
			s.log.Warn().Err(err).Str("filename", local[i].Filename).Msg("Failed to delete old backup")
			continue
		}
		s.log.Info().Str("filename", local[i].Filename).Msg("Deleted old local backup")
	}

	if s.store == nil {
		return
	}
	remote, err := s.listRemote(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to list remote backups for pruning")
		return
	}
	for i := s.retention; i < len(remote); i++ {
		if err := s.store.Delete(ctx, remote[i].Filename); err != nil {
			s.log.Warn().Err(err).Str("filename", remote[i].Filename).Msg("Failed to delete old remote backup")
			continue
		}
		s.log.Info().Str("filename", remote[i].Filename).Msg("Deleted old remote backup")
	}
}

// parseArchiveName extracts the timestamp from folio-backup-2026-01-08-143022.tar.gz
func parseArchiveName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix)
	ts, err := time.Parse(archiveTimestamp, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func sortNewestFirst(list []BackupInfo) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].Timestamp.After(list[j].Timestamp)
	})
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(metadata)
}

func createArchive(archivePath, sourceDir string, files []string) (err error) {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	for _, name := range files {
		if err := addFile(tw, filepath.Join(sourceDir, name), name); err != nil {
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

func addFile(tw *tar.Writer, path, nameInArchive string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    0644,
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
