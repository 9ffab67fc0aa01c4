package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcarrell/galaxia/internal/game/character"
	"github.com/jcarrell/galaxia/internal/presence"
	"github.com/jcarrell/galaxia/internal/storage/postgres"
	"github.com/jcarrell/galaxia/internal/testutil"
)

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func setupCharRepo(t *testing.T) *postgres.CharacterRepository {
	t.Helper()
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	return postgres.NewCharacterRepository(pc.RawPool)
}

func makeTestCharacter(name string) *character.Character {
	return &character.Character{
		AccountID: 1,
		Name:      name,
		Race:      "human",
		Level:     3,
		Status:    character.StatusSleeping,
		Location: character.Location{
			Planet: "Earth",
			Map:    "Town",
			X:      2,
			Y:      3,
		},
		LastActivityAt: time.Now().UTC(),
	}
}

func TestCharacterRepository_CreateAndGet(t *testing.T) {
	repo := setupCharRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, makeTestCharacter(uniqueName("zara")))
	require.NoError(t, err)
	assert.Greater(t, created.ID, int64(0))
	assert.Equal(t, character.StatusSleeping, created.Status)
	assert.Equal(t, "Earth", created.Location.Planet)
	assert.False(t, created.CreatedAt.IsZero())

	fetched, err := repo.GetCharacter(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, fetched.Name)
	assert.Equal(t, created.Location, fetched.Location)
}

func TestCharacterRepository_GetNotFound(t *testing.T) {
	repo := setupCharRepo(t)
	_, err := repo.GetCharacter(context.Background(), 99999999)
	require.Error(t, err)
	assert.ErrorIs(t, err, postgres.ErrCharacterNotFound)
}

func TestCharacterRepository_UpdatePartial(t *testing.T) {
	repo := setupCharRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, makeTestCharacter(uniqueName("zara")))
	require.NoError(t, err)

	active := character.StatusActive
	now := time.Now().UTC().Truncate(time.Microsecond)
	loc := character.Location{Planet: "Mars", Map: "Colony", X: 7, Y: 9}
	err = repo.UpdateCharacter(ctx, created.ID, presence.CharacterUpdate{
		Status:         &active,
		LastActivityAt: &now,
		Location:       &loc,
	})
	require.NoError(t, err)

	fetched, err := repo.GetCharacter(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, character.StatusActive, fetched.Status)
	assert.Equal(t, loc, fetched.Location)
	assert.WithinDuration(t, now, fetched.LastActivityAt, time.Millisecond)

	// Status-only update leaves the location untouched.
	sleeping := character.StatusSleeping
	err = repo.UpdateCharacter(ctx, created.ID, presence.CharacterUpdate{Status: &sleeping})
	require.NoError(t, err)

	fetched, err = repo.GetCharacter(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, character.StatusSleeping, fetched.Status)
	assert.Equal(t, loc, fetched.Location)
}

func TestCharacterRepository_UpdateNotFound(t *testing.T) {
	repo := setupCharRepo(t)
	active := character.StatusActive
	err := repo.UpdateCharacter(context.Background(), 99999999, presence.CharacterUpdate{Status: &active})
	require.Error(t, err)
	assert.ErrorIs(t, err, postgres.ErrCharacterNotFound)
}

func TestCharacterRepository_UpdateEmpty(t *testing.T) {
	repo := setupCharRepo(t)
	err := repo.UpdateCharacter(context.Background(), 1, presence.CharacterUpdate{})
	assert.Error(t, err)
}

func TestCharacterRepository_FindByLocation(t *testing.T) {
	repo := setupCharRepo(t)
	ctx := context.Background()

	beta := makeTestCharacter("beta_" + uniqueName("x"))
	alpha := makeTestCharacter("alpha_" + uniqueName("x"))
	elsewhere := makeTestCharacter("gamma_" + uniqueName("x"))
	elsewhere.Location.X = 99

	for _, c := range []*character.Character{beta, alpha, elsewhere} {
		_, err := repo.Create(ctx, c)
		require.NoError(t, err)
	}

	found, err := repo.FindCharactersByLocation(ctx, "Earth", "Town", 2, 3)
	require.NoError(t, err)
	require.Len(t, found, 2)
	// Ordered by name.
	assert.Equal(t, alpha.Name, found[0].Name)
	assert.Equal(t, beta.Name, found[1].Name)
}

func TestCharacterRepository_DemoteInactive(t *testing.T) {
	repo := setupCharRepo(t)
	ctx := context.Background()

	stale := makeTestCharacter(uniqueName("stale"))
	stale.Status = character.StatusActive
	stale.LastActivityAt = time.Now().UTC().Add(-time.Hour)

	fresh := makeTestCharacter(uniqueName("fresh"))
	fresh.Status = character.StatusActive
	fresh.LastActivityAt = time.Now().UTC()

	staleRow, err := repo.Create(ctx, stale)
	require.NoError(t, err)
	freshRow, err := repo.Create(ctx, fresh)
	require.NoError(t, err)

	cutoff := time.Now().UTC().Add(-15 * time.Minute)

	listed, err := repo.FindActiveOlderThan(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, staleRow.ID, listed[0].ID)

	count, err := repo.DemoteInactive(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	demoted, err := repo.GetCharacter(ctx, staleRow.ID)
	require.NoError(t, err)
	assert.Equal(t, character.StatusSleeping, demoted.Status)

	kept, err := repo.GetCharacter(ctx, freshRow.ID)
	require.NoError(t, err)
	assert.Equal(t, character.StatusActive, kept.Status)

	// Second sweep with the same cutoff demotes nothing.
	count, err = repo.DemoteInactive(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
