package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// Episode is one confirmed stop-sign sighting, from confirmation to resume.
type Episode struct {
	ID           string     `json:"id"`
	ConfirmedAt  time.Time  `json:"confirmed_at"`
	ResumedAt    *time.Time `json:"resumed_at,omitempty"`
	Hits         int        `json:"hits"`
	SnapshotPath string     `json:"snapshot_path,omitempty"`
	SnapshotURL  string     `json:"snapshot_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Active reports whether the episode has not yet resumed.
func (e *Episode) Active() bool {
	return e.ResumedAt == nil
}

// Duration returns how long the episode lasted, or zero while it is active.
func (e *Episode) Duration() time.Duration {
	if e.ResumedAt == nil {
		return 0
	}
	return e.ResumedAt.Sub(e.ConfirmedAt)
}

// EpisodeRepository provides CRUD operations for episodes.
type EpisodeRepository struct {
	db *sql.DB
}

// Episodes returns the episode repository for this store.
func (s *Store) Episodes() *EpisodeRepository {
	return &EpisodeRepository{db: s.db}
}

const episodeColumns = `id, confirmed_at, resumed_at, hits, snapshot_path, snapshot_url, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row scanner) (*Episode, error) {
	e := &Episode{}
	var resumed sql.NullTime

	if err := row.Scan(&e.ID, &e.ConfirmedAt, &resumed, &e.Hits, &e.SnapshotPath, &e.SnapshotURL, &e.CreatedAt); err != nil {
		return nil, err
	}
	if resumed.Valid {
		t := resumed.Time
		e.ResumedAt = &t
	}
	return e, nil
}

// Create inserts a new episode.
func (r *EpisodeRepository) Create(e *Episode) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var resumed any
	if e.ResumedAt != nil {
		resumed = *e.ResumedAt
	}

	_, err := r.db.Exec(
		`INSERT INTO episodes (`+episodeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ConfirmedAt, resumed, e.Hits, e.SnapshotPath, e.SnapshotURL, e.CreatedAt,
	)
	return err
}

// GetByID retrieves an episode by its ID.
func (r *EpisodeRepository) GetByID(id string) (*Episode, error) {
	e, err := scanEpisode(r.db.QueryRow(
		`SELECT `+episodeColumns+` FROM episodes WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// List returns the most recent episodes first. limit <= 0 uses DefaultListLimit.
func (r *EpisodeRepository) List(limit int) ([]*Episode, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.Query(
		`SELECT `+episodeColumns+` FROM episodes
		 ORDER BY confirmed_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return episodes, nil
}

// Active returns the newest episode that has not resumed, or ErrNotFound.
func (r *EpisodeRepository) Active() (*Episode, error) {
	e, err := scanEpisode(r.db.QueryRow(
		`SELECT ` + episodeColumns + ` FROM episodes
		 WHERE resumed_at IS NULL
		 ORDER BY confirmed_at DESC LIMIT 1`,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// Resume marks an episode as ended at the given time.
func (r *EpisodeRepository) Resume(id string, at time.Time) error {
	return r.update(`UPDATE episodes SET resumed_at = ? WHERE id = ?`, at, id)
}

// SetHits records the consecutive-hit count reached during the episode.
func (r *EpisodeRepository) SetHits(id string, hits int) error {
	return r.update(`UPDATE episodes SET hits = ? WHERE id = ?`, hits, id)
}

// SetSnapshot records the local snapshot path and, once uploaded, its URL.
// An empty url leaves any stored URL untouched.
func (r *EpisodeRepository) SetSnapshot(id, path, url string) error {
	return r.update(
		`UPDATE episodes
		 SET snapshot_path = ?, snapshot_url = CASE WHEN ? = '' THEN snapshot_url ELSE ? END
		 WHERE id = ?`,
		path, url, url, id,
	)
}

// CloseActive resumes every open episode. Used at startup to close episodes
// left open by an unclean shutdown.
func (r *EpisodeRepository) CloseActive(at time.Time) (int64, error) {
	result, err := r.db.Exec(`UPDATE episodes SET resumed_at = ? WHERE resumed_at IS NULL`, at)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Count returns the total number of stored episodes.
func (r *EpisodeRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM episodes`).Scan(&n)
	return n, err
}

// Delete removes an episode by its ID.
func (r *EpisodeRepository) Delete(id string) error {
	return r.update(`DELETE FROM episodes WHERE id = ?`, id)
}

func (r *EpisodeRepository) update(query string, args ...any) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
