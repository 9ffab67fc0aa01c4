package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jcarrell/galaxia/internal/game/character"
	"github.com/jcarrell/galaxia/internal/presence"
)

// ErrCharacterNotFound is returned when a character lookup yields no results.
var ErrCharacterNotFound = errors.New("character not found")

const characterColumns = `id, account_id, name, race, level, status,
	       planet, map_name, x_coord, y_coord, last_activity_at,
	       created_at, updated_at`

// CharacterRepository provides character status-record persistence.
// It satisfies the presence core's StatusStore contract.
type CharacterRepository struct {
	db *pgxpool.Pool
}

// NewCharacterRepository creates a CharacterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCharacterRepository(db *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{db: db}
}

// Create inserts a new character and returns it with ID and timestamps set.
// Character rows are normally created by the admin CRUD flows; the
// presence core only updates them.
//
// Precondition: c.Name must be non-empty.
// Postcondition: Returns the created character with ID set, or a non-nil error.
func (r *CharacterRepository) Create(ctx context.Context, c *character.Character) (*character.Character, error) {
	var out character.Character
	err := r.db.QueryRow(ctx, `
		INSERT INTO characters
			(account_id, name, race, level, status,
			 planet, map_name, x_coord, y_coord, last_activity_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING `+characterColumns,
		c.AccountID, c.Name, c.Race, c.Level, c.Status,
		c.Location.Planet, c.Location.Map, c.Location.X, c.Location.Y,
		c.LastActivityAt,
	).Scan(scanTargets(&out)...)
	if err != nil {
		return nil, fmt.Errorf("inserting character: %w", err)
	}
	return &out, nil
}

// GetCharacter retrieves a character by its primary key.
//
// Precondition: id must be > 0.
// Postcondition: Returns the Character or ErrCharacterNotFound.
func (r *CharacterRepository) GetCharacter(ctx context.Context, id int64) (*character.Character, error) {
	var c character.Character
	err := r.db.QueryRow(ctx, `
		SELECT `+characterColumns+`
		FROM characters WHERE id = $1`,
		id,
	).Scan(scanTargets(&c)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("querying character: %w", err)
	}
	return &c, nil
}

// UpdateCharacter applies a partial update to one character's status
// record. Nil fields in upd are left untouched.
//
// Precondition: id must be > 0; upd must set at least one field.
// Postcondition: Returns nil on success, ErrCharacterNotFound if no row updated.
func (r *CharacterRepository) UpdateCharacter(ctx context.Context, id int64, upd presence.CharacterUpdate) error {
	sets := make([]string, 0, 4)
	args := []any{id}

	if upd.Status != nil {
		args = append(args, *upd.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if upd.LastActivityAt != nil {
		args = append(args, *upd.LastActivityAt)
		sets = append(sets, fmt.Sprintf("last_activity_at = $%d", len(args)))
	}
	if upd.Location != nil {
		args = append(args, upd.Location.Planet, upd.Location.Map, upd.Location.X, upd.Location.Y)
		sets = append(sets, fmt.Sprintf("planet = $%d, map_name = $%d, x_coord = $%d, y_coord = $%d",
			len(args)-3, len(args)-2, len(args)-1, len(args)))
	}
	if len(sets) == 0 {
		return errors.New("update must set at least one field")
	}

	query := "UPDATE characters SET " + strings.Join(sets, ", ") + ", updated_at = NOW() WHERE id = $1"
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCharacterNotFound
	}
	return nil
}

// FindCharactersByLocation returns all characters whose stored
// location matches the coordinates exactly, ordered by name.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *CharacterRepository) FindCharactersByLocation(ctx context.Context, planet, mapName string, x, y int) ([]*character.Character, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+characterColumns+`
		FROM characters
		WHERE planet = $1 AND map_name = $2 AND x_coord = $3 AND y_coord = $4
		ORDER BY name ASC, id ASC`,
		planet, mapName, x, y,
	)
	if err != nil {
		return nil, fmt.Errorf("querying characters by location: %w", err)
	}
	defer rows.Close()
	return collectCharacters(rows)
}

// FindActiveOlderThan returns active characters whose last activity is
// strictly before the cutoff.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *CharacterRepository) FindActiveOlderThan(ctx context.Context, cutoff time.Time) ([]*character.Character, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+characterColumns+`
		FROM characters
		WHERE status = $1 AND last_activity_at < $2
		ORDER BY last_activity_at ASC`,
		character.StatusActive, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("querying stale characters: %w", err)
	}
	defer rows.Close()
	return collectCharacters(rows)
}

// DemoteInactive sets every stale active character to sleeping in one
// batch and returns the number demoted. Re-running against already
// sleeping rows affects zero of them.
//
// Postcondition: Returns the demoted count, or a non-nil error.
func (r *CharacterRepository) DemoteInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE characters
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND last_activity_at < $3`,
		character.StatusSleeping, character.StatusActive, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("demoting inactive characters: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanTargets(c *character.Character) []any {
	return []any{
		&c.ID, &c.AccountID, &c.Name, &c.Race, &c.Level, &c.Status,
		&c.Location.Planet, &c.Location.Map, &c.Location.X, &c.Location.Y,
		&c.LastActivityAt, &c.CreatedAt, &c.UpdatedAt,
	}
}

func collectCharacters(rows pgx.Rows) ([]*character.Character, error) {
	chars := make([]*character.Character, 0)
	for rows.Next() {
		var c character.Character
		if err := rows.Scan(scanTargets(&c)...); err != nil {
			return nil, fmt.Errorf("scanning character row: %w", err)
		}
		chars = append(chars, &c)
	}
	return chars, rows.Err()
}
