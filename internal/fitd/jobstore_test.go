package fitd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStoreCreateGet(t *testing.T) {
	s := NewJobStore()
	rec, err := s.Create("", &FitRequest{RunYAML: "x"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rec.ID, "fit-"), rec.ID)
	assert.Equal(t, StatusPending, rec.Status)
	assert.NotZero(t, rec.CreatedAtUnixMs)

	got, ok := s.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, "x", got.Request.RunYAML)

	got.Status = StatusFailed
	again, _ := s.Get(rec.ID)
	assert.Equal(t, StatusPending, again.Status, "Get returns a snapshot")

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestJobStoreCreateRejects(t *testing.T) {
	s := NewJobStore()
	_, err := s.Create("a", nil)
	require.NoError(t, err)

	_, err = s.Create("a", nil)
	assert.ErrorIs(t, err, ErrFitExists)

	_, err = s.Create("a:stop", nil)
	assert.Error(t, err)
	_, err = s.Create("a/b", nil)
	assert.Error(t, err)
}

func TestJobStoreStatusTransitions(t *testing.T) {
	s := NewJobStore()
	_, err := s.Create("a", nil)
	require.NoError(t, err)

	rec, err := s.SetStatus("a", StatusRunning, "")
	require.NoError(t, err)
	assert.NotZero(t, rec.StartedAtUnixMs)
	assert.Zero(t, rec.EndedAtUnixMs)

	rec, err = s.SetStatus("a", StatusFailed, "boom")
	require.NoError(t, err)
	assert.Equal(t, "boom", rec.Error)
	assert.NotZero(t, rec.EndedAtUnixMs)

	_, err = s.SetStatus("a", StatusCompleted, "")
	assert.ErrorIs(t, err, ErrFitTerminal)

	_, err = s.SetStatus("missing", StatusRunning, "")
	assert.ErrorIs(t, err, ErrFitNotFound)
	assert.ErrorIs(t, s.SetSummary("missing", &FitSummary{}), ErrFitNotFound)
}

func TestJobStoreList(t *testing.T) {
	s := NewJobStore()
	for _, id := range []string{"c", "a", "b", "d"} {
		_, err := s.Create(id, nil)
		require.NoError(t, err)
	}
	_, err := s.SetStatus("b", StatusRunning, "")
	require.NoError(t, err)

	all := s.List(0, 0, "")
	require.Len(t, all, 4)

	running := s.List(10, 0, StatusRunning)
	require.Len(t, running, 1)
	assert.Equal(t, "b", running[0].ID)

	assert.Len(t, s.List(2, 0, ""), 2)
	assert.Len(t, s.List(10, 3, ""), 1)
	assert.Empty(t, s.List(10, 9, ""))
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want FitStatus
	}{
		{"running", StatusRunning},
		{"COMPLETED", StatusCompleted},
		{"Cancelled", StatusCancelled},
		{"bogus", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseStatus(tt.in), tt.in)
	}
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusRunning.Terminal())
}
