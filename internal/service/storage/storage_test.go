package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/dto"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
	"github.com/geongi-im/yolo-traffic-monitor/internal/model"
	"github.com/geongi-im/yolo-traffic-monitor/internal/repository/sqlite"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func newCatalog(t *testing.T) *sqlite.ArtifactRepository {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlite.NewArtifactRepository(db)
}

func fakeWrite(path string, _ gocv.Mat) bool {
	return os.WriteFile(path, []byte("jpeg-bytes"), 0644) == nil
}

func TestRemoveWorkDir_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "batch_20250101_120000_abcd1234")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_0.jpg"), []byte("x"), 0644))

	require.NoError(t, RemoveWorkDir(dir))
	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, RemoveWorkDir(dir))
	require.NoError(t, RemoveWorkDir(""))
}

func TestNewWorkDir_Unique(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.Local)
	a := NewWorkDir("temp", now)
	b := NewWorkDir("temp", now)

	require.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(filepath.Base(a), "batch_20250304_050607_"))
	require.Equal(t, "temp", filepath.Dir(a))
}

func TestParseArtifactName(t *testing.T) {
	ts, ok := ParseArtifactName("analyzed_20250304_050607.jpg")
	require.True(t, ok)
	require.Equal(t, time.Date(2025, 3, 4, 5, 6, 7, 0, time.Local), ts)

	_, ok = ParseArtifactName("analyzed_20250304_050607_2.jpg")
	require.True(t, ok)

	for _, bad := range []string{"frame_0.jpg", "analyzed_2025.jpg", "analyzed_20250304_050607.png"} {
		_, ok := ParseArtifactName(bad)
		require.False(t, ok, bad)
	}
}

func TestArtifactStore_Save(t *testing.T) {
	repo := newCatalog(t)
	out := filepath.Join(t.TempDir(), "output")
	store := NewArtifactStore(&config.Config{OutputDirectory: out}, repo, logger.Discard())
	store.write = fakeWrite
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)
	store.now = func() time.Time { return fixed }

	mat := gocv.NewMat()
	defer mat.Close()

	first, err := store.Save(mat, 6301)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(out, "analyzed_20250102_030405.jpg"), first)

	second, err := store.Save(mat, 6301)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(out, "analyzed_20250102_030405_2.jpg"), second)

	rec, err := repo.GetByFilename("analyzed_20250102_030405.jpg")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, 6301, rec.Camera)
	require.EqualValues(t, len("jpeg-bytes"), rec.FileSize)

	count, _ := repo.GetTotalCount(nil)
	require.Equal(t, 2, count)
}

func TestArtifactStore_SaveWriteFailure(t *testing.T) {
	store := NewArtifactStore(&config.Config{OutputDirectory: t.TempDir()}, nil, logger.Discard())
	store.write = func(string, gocv.Mat) bool { return false }

	mat := gocv.NewMat()
	defer mat.Close()
	_, err := store.Save(mat, 6301)
	require.Error(t, err)
}

func TestRetention_Prune(t *testing.T) {
	repo := newCatalog(t)
	dir := t.TempDir()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		name := base.Add(time.Duration(i) * time.Minute).Format("analyzed_20060102_150405.jpg")
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		_, err := repo.Insert(&model.Artifact{Filename: name, Camera: 6301, Timestamp: base.Add(time.Duration(i) * time.Minute), FilePath: path, FileSize: 1})
		require.NoError(t, err)
	}

	svc := NewRetentionService(&config.Config{MaxResults: 3, RetentionInterval: time.Minute}, repo, logger.Discard())
	removed, err := svc.Prune()
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	count, _ := repo.GetTotalCount(nil)
	require.Equal(t, 3, count)
	_, err = os.Stat(filepath.Join(dir, "analyzed_20250101_000000.jpg"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "analyzed_20250101_000400.jpg"))
	require.NoError(t, err)

	removed, err = svc.Prune()
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestReindex(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"analyzed_20260301_083000.jpg",
		"analyzed_20260301_083000_2.jpg",
		"analyzed_20260301_084500.jpg",
		"snapshot.jpg",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "analyzed_20260301_090000.jpg"), 0755))

	repo := newCatalog(t)
	stats, err := Reindex(dir, 6301, repo)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Indexed)
	require.Equal(t, []string{"snapshot.jpg"}, stats.Skipped)

	latest, err := repo.GetLatest(6301)
	require.NoError(t, err)
	require.Equal(t, "analyzed_20260301_084500.jpg", latest.Filename)

	// running twice does not duplicate records
	_, err = Reindex(dir, 6301, repo)
	require.NoError(t, err)
	count, err := repo.GetTotalCount(&dto.ArtifactFilter{})
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestReindex_MissingDirectory(t *testing.T) {
	_, err := Reindex(filepath.Join(t.TempDir(), "nope"), 6301, newCatalog(t))
	require.Error(t, err)
}
