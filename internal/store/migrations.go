package store

import (
	"fmt"
	"strconv"
)

func (s *Store) migrate() error {
	if err := s.migrateV1(); err != nil {
		return err
	}
	return s.migrateV2()
}

func (s *Store) schemaVersion() int {
	var version string
	if err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version); err != nil {
		return 0
	}
	v, _ := strconv.Atoi(version)
	return v
}

func (s *Store) setSchemaVersion(v int) error {
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', ?)`, strconv.Itoa(v)); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return nil
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		avatar TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workflows (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		slug TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		stages TEXT NOT NULL,
		fields TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		workflow_type TEXT NOT NULL,
		assignees TEXT NOT NULL DEFAULT '[]',
		tags TEXT NOT NULL DEFAULT '[]',
		deadline INTEGER,
		blocked_by TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_by TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_workflow_type ON tasks(workflow_type);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		parsed_data TEXT,
		related_task_ids TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}
	if s.schemaVersion() >= 1 {
		return nil
	}
	return s.setSchemaVersion(1)
}

func (s *Store) migrateV2() error {
	if s.schemaVersion() >= 2 {
		return nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS task_name_corrections (
		id TEXT PRIMARY KEY,
		original_title TEXT NOT NULL,
		corrected_title TEXT NOT NULL,
		workflow_type TEXT NOT NULL,
		original_tags TEXT NOT NULL DEFAULT '[]',
		corrected_tags TEXT NOT NULL DEFAULT '[]',
		user_message TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_corrections_workflow ON task_name_corrections(workflow_type, created_at);

	CREATE TABLE IF NOT EXISTS naming_sequences (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v2: %w", err)
	}
	return s.setSchemaVersion(2)
}
