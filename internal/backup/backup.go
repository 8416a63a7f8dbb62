// Package backup pushes encrypted snapshots of the planner database to
// S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/store"
	"github.com/christopher-besch/chore-planner/internal/week"
)

var (
	ErrDisabled         = errors.New("snapshots are not configured")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrNotCompleted     = errors.New("snapshot was not uploaded")
)

// objectStore is the subset of the S3 client the manager uses.
type objectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Config struct {
	S3 S3Config
	// Prefix is prepended to every object key.
	Prefix     string
	Passphrase string
	// Keep is the number of completed snapshots retained; older ones are
	// deleted after each upload.
	Keep int
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State        State      `json:"state"`
	LastSnapshot *time.Time `json:"last_snapshot,omitempty"`
	Error        string     `json:"error,omitempty"`
	InProgress   bool       `json:"in_progress"`
}

// Manager takes snapshots one at a time and keeps their catalogue in the
// snapshots table of the same database.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	status Status
	client objectStore

	// held for the whole of a snapshot
	runMu sync.Mutex

	db        *sql.DB
	snapshots *store.SnapshotStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewManager returns a disabled manager unless both the bucket credentials
// and a passphrase are configured.
func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	if cfg.Keep <= 0 {
		cfg.Keep = 8
	}
	m := &Manager{
		cfg:       cfg,
		status:    Status{State: StateDisabled},
		db:        db,
		snapshots: store.NewSnapshotStore(db),
		logger:    logger.With("component", "backup"),
		now:       time.Now,
	}
	if cfg.S3.complete() && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) objectKey(w week.Week, at time.Time) string {
	year, isoWeek := w.ISOWeek()
	return fmt.Sprintf("%s%04d-W%02d-%s.db.enc", m.cfg.Prefix, year, isoWeek, at.UTC().Format("20060102T150405.000Z"))
}

// Snapshot copies the database, seals it and uploads it, labelled with w.
// Old snapshots beyond the retention count are deleted afterwards; a failed
// deletion is only logged.
func (m *Manager) Snapshot(ctx context.Context, w week.Week) (*model.Snapshot, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	last := m.status.LastSnapshot
	m.mu.RUnlock()
	if client == nil {
		return nil, ErrDisabled
	}

	m.setStatus(Status{State: StateRunning, InProgress: true, LastSnapshot: last})

	started := m.now()
	record, err := m.snapshots.Create(ctx, w, m.objectKey(w, started), started)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error(), LastSnapshot: last})
		return nil, err
	}

	fail := func(what string, err error) (*model.Snapshot, error) {
		err = fmt.Errorf("%s: %w", what, err)
		if uerr := m.snapshots.UpdateStatus(ctx, record.ID, model.SnapshotFailed, err.Error()); uerr != nil {
			m.logger.Warn("record failed snapshot", "id", record.ID, "error", uerr)
		}
		m.setStatus(Status{State: StateError, Error: err.Error(), LastSnapshot: last})
		return nil, err
	}

	data, err := m.dump(ctx)
	if err != nil {
		return fail("copy database", err)
	}
	sealed, err := Seal(data, m.cfg.Passphrase)
	if err != nil {
		return fail("encrypt", err)
	}

	if err := m.snapshots.UpdateStatus(ctx, record.ID, model.SnapshotUploading, ""); err != nil {
		return fail("mark uploading", err)
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(record.ObjectKey),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return fail("upload", err)
	}

	completed := m.now()
	if err := m.snapshots.MarkCompleted(ctx, record.ID, int64(len(sealed)), completed); err != nil {
		return fail("mark completed", err)
	}
	m.setStatus(Status{State: StateIdle, LastSnapshot: &completed})
	m.logger.Info("snapshot uploaded", "id", record.ID, "week", w.String(), "key", record.ObjectKey, "bytes", len(sealed))

	m.prune(ctx, client, bucket)

	return m.snapshots.Get(ctx, record.ID)
}

// dump writes a consistent copy of the live database to a temporary file and
// returns its contents.
func (m *Manager) dump(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "chore-planner-snapshot-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "planner.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	return os.ReadFile(path)
}

func (m *Manager) prune(ctx context.Context, client objectStore, bucket string) {
	keys, err := m.snapshots.Prune(ctx, m.cfg.Keep)
	if err != nil {
		m.logger.Warn("prune snapshots", "error", err)
		return
	}
	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete snapshot object", "key", key, "error", err)
		}
	}
	if len(keys) > 0 {
		m.logger.Info("pruned snapshots", "count", len(keys))
	}
}

// List returns up to limit snapshots, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]model.Snapshot, error) {
	return m.snapshots.List(ctx, limit)
}

// Download streams the sealed snapshot with the given id from storage.
func (m *Manager) Download(ctx context.Context, id int64) (io.ReadCloser, int64, error) {
	record, client, bucket, err := m.completed(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(record.ObjectKey),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("download snapshot %d: %w", id, err)
	}
	return out.Body, record.SizeBytes, nil
}

// Verify downloads a snapshot, decrypts it and runs SQLite's integrity check
// on the copy. It returns the check's report, "ok" when healthy.
func (m *Manager) Verify(ctx context.Context, id int64) (string, error) {
	body, _, err := m.Download(ctx, id)
	if err != nil {
		return "", err
	}
	sealed, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return "", fmt.Errorf("read snapshot %d: %w", id, err)
	}

	plain, err := Open(sealed, m.cfg.Passphrase)
	if err != nil {
		return "", fmt.Errorf("open snapshot %d: %w", id, err)
	}

	dir, err := os.MkdirTemp("", "chore-planner-verify-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "planner.db")
	if err := os.WriteFile(path, plain, 0o600); err != nil {
		return "", err
	}

	copyDB, err := sql.Open("sqlite", path)
	if err != nil {
		return "", fmt.Errorf("open restored copy: %w", err)
	}
	defer copyDB.Close()

	var report string
	if err := copyDB.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&report); err != nil {
		return "", fmt.Errorf("integrity check: %w", err)
	}
	return report, nil
}

func (m *Manager) completed(ctx context.Context, id int64) (*model.Snapshot, objectStore, string, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()
	if client == nil {
		return nil, nil, "", ErrDisabled
	}

	record, err := m.snapshots.Get(ctx, id)
	if err != nil {
		return nil, nil, "", err
	}
	if record == nil {
		return nil, nil, "", fmt.Errorf("%w: %d", ErrSnapshotNotFound, id)
	}
	if record.Status != model.SnapshotCompleted {
		return nil, nil, "", fmt.Errorf("%w: %d is %s", ErrNotCompleted, id, record.Status)
	}
	return record, client, bucket, nil
}
