package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Episodes table - one row per confirmed stop-sign episode
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			confirmed_at DATETIME NOT NULL,
			resumed_at DATETIME,
			hits INTEGER NOT NULL DEFAULT 0,
			snapshot_path TEXT NOT NULL DEFAULT '',
			snapshot_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_episodes_confirmed_at ON episodes(confirmed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_resumed_at ON episodes(resumed_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
