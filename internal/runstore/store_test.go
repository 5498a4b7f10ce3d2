package runstore

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/learner/internal/frame"
	"github.com/banshee-data/learner/internal/timeutil"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenMigratesToLatest(t *testing.T) {
	s := openStore(t)
	version, dirty, err := s.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.Begin("classification", "in.csv", "label")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	r, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, r.Status)
}

func TestRunLifecycle(t *testing.T) {
	s := openStore(t)
	id, err := s.Begin("classification", "data.csv", "label")
	require.NoError(t, err)
	require.NoError(t, s.RecordStage(id, "LoadData", 1500*time.Millisecond))
	require.NoError(t, s.RecordStage(id, "SetupExperiment", 250*time.Millisecond))
	require.NoError(t, s.Finish(id, "Random Forest Classifier", nil))

	r, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Equal(t, "Random Forest Classifier", r.BestModel)
	assert.Equal(t, "data.csv", r.InputFile)
	assert.False(t, r.FinishedAt.Before(r.StartedAt))
	want := []StageTiming{{"LoadData", 1500 * time.Millisecond}, {"SetupExperiment", 250 * time.Millisecond}}
	if diff := cmp.Diff(want, r.Stages); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
}

func TestFinishWithError(t *testing.T) {
	s := openStore(t)
	id, err := s.Begin("regression", "data.csv", "y")
	require.NoError(t, err)
	require.NoError(t, s.Finish(id, "", errors.New("boom")))

	r, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "boom", r.Error)

	assert.ErrorIs(t, s.Finish("missing", "", nil), ErrNotFound)
	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLeaderboardRoundTrip(t *testing.T) {
	s := openStore(t)
	id, err := s.Begin("classification", "data.csv", "label")
	require.NoError(t, err)

	board := frame.New("Model", "Accuracy", "TT (Sec)")
	board.Append("rf", "Random Forest Classifier", "0.9000", "0.10")
	board.Append("lr", "Logistic Regression", "0.8500", "0.01")
	require.NoError(t, s.RecordLeaderboard(id, board))

	got, err := s.Leaderboard(id)
	require.NoError(t, err)
	if diff := cmp.Diff(board, got); diff != "" {
		t.Errorf("leaderboard mismatch (-want +got):\n%s", diff)
	}

	_, err = s.Leaderboard("other")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	s := openStore(t)
	clock := timeutil.NewMockClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	s.SetClock(clock)
	first, err := s.Begin("classification", "a.csv", "label")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := s.Begin("classification", "b.csv", "label")
	require.NoError(t, err)

	runs, err := s.List(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, first, runs[1].ID)
	assert.Equal(t, time.Minute, runs[0].StartedAt.Sub(runs[1].StartedAt))
}
