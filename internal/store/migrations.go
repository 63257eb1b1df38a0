package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// Timestamps are stored as Unix milliseconds so that ordering is exact.
//
// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create threads and thread messages",
		SQL: `
			CREATE TABLE threads (
				id          TEXT PRIMARY KEY,
				owner_id    TEXT NOT NULL,
				title       TEXT NOT NULL DEFAULT '',
				created_at  INTEGER NOT NULL,
				updated_at  INTEGER NOT NULL
			);

			CREATE INDEX idx_threads_owner ON threads (owner_id, updated_at DESC);

			CREATE TABLE thread_messages (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				thread_id   TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
				role        TEXT NOT NULL,
				content     TEXT NOT NULL,
				timestamp   INTEGER NOT NULL
			);

			CREATE INDEX idx_thread_messages_thread ON thread_messages (thread_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create checkpoints",
		SQL: `
			CREATE TABLE checkpoints (
				thread_id   TEXT PRIMARY KEY,
				next_node   TEXT NOT NULL,
				step        INTEGER NOT NULL,
				turn_start  INTEGER NOT NULL,
				completed   INTEGER NOT NULL,
				state_gz    BLOB NOT NULL,
				updated_at  INTEGER NOT NULL
			);
		`,
	},
	{
		Version: 3,
		Name:    "create school collections",
		SQL: `
			CREATE TABLE users (
				id      TEXT PRIMARY KEY,
				name    TEXT NOT NULL,
				email   TEXT NOT NULL DEFAULT '',
				role    TEXT NOT NULL
			);

			CREATE TABLE children (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL,
				nickname    TEXT NOT NULL DEFAULT '',
				gender      TEXT NOT NULL DEFAULT '',
				birth_date  INTEGER NOT NULL DEFAULT 0,
				class_name  TEXT NOT NULL DEFAULT '',
				parent_id   TEXT NOT NULL REFERENCES users(id)
			);

			CREATE INDEX idx_children_parent ON children (parent_id);

			CREATE TABLE daily_reports (
				id             TEXT PRIMARY KEY,
				child_id       TEXT NOT NULL REFERENCES children(id) ON DELETE CASCADE,
				date           INTEGER NOT NULL,
				theme          TEXT NOT NULL DEFAULT '',
				sub_theme      TEXT NOT NULL DEFAULT '',
				activities     TEXT NOT NULL DEFAULT '',
				meal           TEXT NOT NULL DEFAULT '',
				nap            TEXT NOT NULL DEFAULT '',
				mood           TEXT NOT NULL DEFAULT '',
				special_notes  TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_daily_reports_child ON daily_reports (child_id, date DESC);

			CREATE TABLE semester_reports (
				id             TEXT PRIMARY KEY,
				child_id       TEXT NOT NULL REFERENCES children(id) ON DELETE CASCADE,
				semester       TEXT NOT NULL,
				academic_year  TEXT NOT NULL,
				assessments    TEXT NOT NULL DEFAULT '{}',
				teacher_notes  TEXT NOT NULL DEFAULT '',
				created_at     INTEGER NOT NULL
			);

			CREATE INDEX idx_semester_reports_child ON semester_reports (child_id);

			CREATE TABLE payments (
				id           TEXT PRIMARY KEY,
				child_id     TEXT NOT NULL REFERENCES children(id) ON DELETE CASCADE,
				description  TEXT NOT NULL,
				amount       INTEGER NOT NULL,
				due_date     INTEGER NOT NULL,
				paid_at      INTEGER,
				status       TEXT NOT NULL
			);

			CREATE INDEX idx_payments_child ON payments (child_id, due_date DESC);

			CREATE TABLE curriculums (
				id           TEXT PRIMARY KEY,
				name         TEXT NOT NULL,
				description  TEXT NOT NULL DEFAULT '',
				age_group    TEXT NOT NULL DEFAULT ''
			);

			CREATE TABLE schedules (
				id             TEXT PRIMARY KEY,
				day            TEXT NOT NULL,
				start_time     TEXT NOT NULL,
				end_time       TEXT NOT NULL DEFAULT '',
				activity       TEXT NOT NULL,
				class_name     TEXT NOT NULL DEFAULT '',
				teacher_id     TEXT REFERENCES users(id) ON DELETE SET NULL,
				teacher_name   TEXT NOT NULL DEFAULT '',
				curriculum_id  TEXT REFERENCES curriculums(id) ON DELETE SET NULL,
				curriculum_name TEXT NOT NULL DEFAULT '',
				created_by     TEXT NOT NULL DEFAULT '',
				created_at     INTEGER NOT NULL
			);

			CREATE INDEX idx_schedules_day ON schedules (day);
		`,
	},
}
