package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/photobingo/internal/bingo"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "bingo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(context.Background()))

	return s
}

func testBoard(t *testing.T) bingo.Board {
	t.Helper()

	pool := make([]bingo.Clue, bingo.Cells)
	for i := range pool {
		pool[i] = bingo.Clue{
			Name:        fmt.Sprintf("Guest %d", i),
			Description: fmt.Sprintf("Take a photo with guest %d", i),
			Emoji:       "🎉",
		}
	}

	b, err := bingo.Generate(pool, bingo.Cells)
	require.NoError(t, err)
	return b
}

func TestMigrate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	t.Run("seeds pending phase", func(t *testing.T) {
		p, err := s.Phase(ctx)
		require.NoError(t, err)
		assert.Equal(t, bingo.Pending, p)
	})

	t.Run("is idempotent", func(t *testing.T) {
		require.NoError(t, s.SetPhase(ctx, bingo.Active))
		require.NoError(t, s.Migrate(ctx))

		p, err := s.Phase(ctx)
		require.NoError(t, err)
		assert.Equal(t, bingo.Active, p)
	})
}

func TestUsers(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "Alice")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUserWithBoard(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	t.Run("stores player and board together", func(t *testing.T) {
		b := testBoard(t)

		u, err := s.CreateUserWithBoard(ctx, "Carol", b)
		require.NoError(t, err)

		got, err := s.LoadBoard(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, b, got)
	})

	t.Run("rolls back the player when the board fails", func(t *testing.T) {
		b := testBoard(t)
		b[1].ID = b[0].ID

		_, err := s.CreateUserWithBoard(ctx, "Dave", b)
		require.Error(t, err)

		counts, err := s.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, counts.Users)
	})
}

func TestBoards(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "Bob")
	require.NoError(t, err)

	_, err = s.LoadBoard(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	b := testBoard(t)
	require.NoError(t, s.SaveBoard(ctx, u.ID, b))

	got, err := s.LoadBoard(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	// saving again replaces the board
	b2 := testBoard(t)
	require.NoError(t, s.SaveBoard(ctx, u.ID, b2))
	got, err = s.LoadBoard(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, b2, got)
}

func TestSubmissions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "Carol")
	require.NoError(t, err)
	b := testBoard(t)
	require.NoError(t, s.SaveBoard(ctx, u.ID, b))

	c, err := s.Completion(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, c)

	for i := 0; i < bingo.Size; i++ {
		p, err := s.AddPhoto(ctx, PhotoSubmission{
			UserID:    u.ID,
			CellID:    b[i].ID,
			PhotoURL:  fmt.Sprintf("/photos/p%d.jpg", i),
			ClueText:  b[i].Description,
			ClueEmoji: b[i].Emoji,
		})
		require.NoError(t, err)
		assert.NotZero(t, p.ID)
	}

	// re-upload replaces the earlier photo
	_, err = s.AddPhoto(ctx, PhotoSubmission{UserID: u.ID, CellID: b[0].ID, PhotoURL: "/photos/again.jpg", ClueText: "x", ClueEmoji: "y"})
	require.NoError(t, err)

	c, err = s.Completion(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, c, bingo.Size)
	assert.Equal(t, "/photos/again.jpg", c[b[0].ID])

	line, ok := bingo.DetectFirstLine(b, c)
	require.True(t, ok)

	_, err = s.AddBingo(ctx, BingoSubmission{
		UserID:    u.ID,
		UserName:  u.Name,
		Line:      line.String(),
		PhotoURLs: [bingo.Size]string{"a", "b", "c", "d", "e"},
	})
	require.NoError(t, err)

	photos, bingos, err := s.UserStats(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, photos)
	assert.Equal(t, 1, bingos)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Users: 1, Photos: 6, Bingos: 1}, counts)
}

func TestSetPhase(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetPhase(ctx, bingo.Finished))
	p, err := s.Phase(ctx)
	require.NoError(t, err)
	assert.Equal(t, bingo.Finished, p)

	assert.Error(t, s.SetPhase(ctx, bingo.Phase("paused")))
}

func TestReset(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "Dan")
	require.NoError(t, err)
	b := testBoard(t)
	require.NoError(t, s.SaveBoard(ctx, u.ID, b))
	_, err = s.AddPhoto(ctx, PhotoSubmission{UserID: u.ID, CellID: b[0].ID, PhotoURL: "u", ClueText: "t", ClueEmoji: "e"})
	require.NoError(t, err)
	require.NoError(t, s.SetPhase(ctx, bingo.Active))

	require.NoError(t, s.Reset(ctx))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)

	p, err := s.Phase(ctx)
	require.NoError(t, err)
	assert.Equal(t, bingo.Pending, p)

	_, err = s.LoadBoard(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
