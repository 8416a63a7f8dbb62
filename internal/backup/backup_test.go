package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/christopher-besch/chore-planner/internal/database"
	"github.com/christopher-besch/chore-planner/internal/logging"
	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/store"
	"github.com/christopher-besch/chore-planner/internal/week"
)

// mockS3Client implements objectStore for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	delErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

const testPassphrase = "correct horse battery staple"

var testWeek = week.FromEpoch(2850) // 33/2024

func enabledConfig() Config {
	return Config{
		S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret", Region: "eu-central-1"},
		Prefix:     "house/",
		Passphrase: testPassphrase,
		Keep:       2,
	}
}

// newTestManager returns a manager over a fresh database with one room,
// uploading to an in-memory bucket. Every snapshot advances its clock by a
// minute.
func newTestManager(t *testing.T) (*Manager, *mockS3Client) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.New(db).Tenants.CreateRoom(context.Background(), "M401"); err != nil {
		t.Fatalf("create room: %v", err)
	}

	m := NewManager(enabledConfig(), db, logging.Discard())
	mock := newMockS3()
	m.client = mock

	clock := time.Date(2024, 8, 12, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(30 * time.Second)
		return clock
	}
	return m, mock
}

func TestManagerState(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want State
	}{
		{"empty", Config{}, StateDisabled},
		{"no passphrase", Config{S3: enabledConfig().S3}, StateDisabled},
		{"no secret", Config{S3: S3Config{Bucket: "b", AccessKey: "k"}, Passphrase: "p"}, StateDisabled},
		{"complete", enabledConfig(), StateIdle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.cfg, nil, logging.Discard())
			if got := m.Status().State; got != tt.want {
				t.Errorf("state = %q, want %q", got, tt.want)
			}
			if m.Enabled() != (tt.want == StateIdle) {
				t.Errorf("Enabled() = %v", m.Enabled())
			}
		})
	}
}

func TestSnapshotDisabled(t *testing.T) {
	m := NewManager(Config{}, nil, logging.Discard())
	if _, err := m.Snapshot(context.Background(), testWeek); !errors.Is(err, ErrDisabled) {
		t.Errorf("Snapshot error = %v, want ErrDisabled", err)
	}
	if _, _, err := m.Download(context.Background(), 1); !errors.Is(err, ErrDisabled) {
		t.Errorf("Download error = %v, want ErrDisabled", err)
	}
}

func TestSnapshotUploadsSealedDatabase(t *testing.T) {
	m, mock := newTestManager(t)
	ctx := context.Background()

	snap, err := m.Snapshot(ctx, testWeek)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Status != model.SnapshotCompleted {
		t.Errorf("status = %q, want %q", snap.Status, model.SnapshotCompleted)
	}
	wantKey := "house/2024-W33-20240812T090030.000Z.db.enc"
	if snap.ObjectKey != wantKey {
		t.Errorf("object key = %q, want %q", snap.ObjectKey, wantKey)
	}

	sealed, ok := mock.objects[wantKey]
	if !ok {
		t.Fatalf("object %q not uploaded, have %v", wantKey, mock.keys())
	}
	if snap.SizeBytes != int64(len(sealed)) {
		t.Errorf("size = %d, want %d", snap.SizeBytes, len(sealed))
	}

	plain, err := Open(sealed, testPassphrase)
	if err != nil {
		t.Fatalf("open sealed snapshot: %v", err)
	}
	if !bytes.HasPrefix(plain, []byte("SQLite format 3\x00")) {
		t.Fatal("snapshot is not a SQLite database")
	}

	path := filepath.Join(t.TempDir(), "copy.db")
	if err := os.WriteFile(path, plain, 0o600); err != nil {
		t.Fatalf("write copy: %v", err)
	}
	copyDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open copy: %v", err)
	}
	defer copyDB.Close()
	var rooms int
	if err := copyDB.QueryRow(`SELECT COUNT(*) FROM rooms`).Scan(&rooms); err != nil {
		t.Fatalf("count rooms in copy: %v", err)
	}
	if rooms != 1 {
		t.Errorf("rooms in copy = %d, want 1", rooms)
	}

	status := m.Status()
	if status.State != StateIdle || status.LastSnapshot == nil {
		t.Errorf("status = %+v, want idle with last snapshot", status)
	}
}

func TestSnapshotVerify(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	snap, err := m.Snapshot(ctx, testWeek)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	report, err := m.Verify(ctx, snap.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report != "ok" {
		t.Errorf("report = %q, want ok", report)
	}

	if _, err := m.Verify(ctx, snap.ID+100); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("verify missing error = %v, want ErrSnapshotNotFound", err)
	}
}

func TestSnapshotPrunesOldObjects(t *testing.T) {
	m, mock := newTestManager(t)
	ctx := context.Background()

	var last *model.Snapshot
	for i := range 4 {
		snap, err := m.Snapshot(ctx, testWeek.Add(i))
		if err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
		last = snap
	}

	if keys := mock.keys(); len(keys) != 2 {
		t.Errorf("objects after prune = %v, want 2", keys)
	}
	list, err := m.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("catalogue has %d snapshots, want 2", len(list))
	}
	if list[0].ID != last.ID {
		t.Errorf("newest snapshot = %d, want %d", list[0].ID, last.ID)
	}
	if list[1].Week != testWeek.Add(2) {
		t.Errorf("oldest kept week = %s, want %s", list[1].Week, testWeek.Add(2))
	}
}

func TestSnapshotPruneDeleteFailureIsNotFatal(t *testing.T) {
	m, mock := newTestManager(t)
	mock.delErr = errors.New("access denied")
	ctx := context.Background()

	for i := range 3 {
		if _, err := m.Snapshot(ctx, testWeek.Add(i)); err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
	}
	if keys := mock.keys(); len(keys) != 3 {
		t.Errorf("objects = %d, want 3 when deletes fail", len(keys))
	}
}

func TestSnapshotUploadFailure(t *testing.T) {
	m, mock := newTestManager(t)
	mock.putErr = errors.New("bucket unreachable")
	ctx := context.Background()

	if _, err := m.Snapshot(ctx, testWeek); err == nil {
		t.Fatal("expected upload error")
	}
	status := m.Status()
	if status.State != StateError {
		t.Errorf("state = %q, want %q", status.State, StateError)
	}

	list, err := m.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != model.SnapshotFailed {
		t.Fatalf("catalogue = %+v, want one failed snapshot", list)
	}
	if _, _, err := m.Download(ctx, list[0].ID); !errors.Is(err, ErrNotCompleted) {
		t.Errorf("download failed snapshot error = %v, want ErrNotCompleted", err)
	}

	mock.putErr = nil
	if _, err := m.Snapshot(ctx, testWeek); err != nil {
		t.Fatalf("snapshot after recovery: %v", err)
	}
	if m.Status().State != StateIdle {
		t.Errorf("state after recovery = %q, want %q", m.Status().State, StateIdle)
	}
}
