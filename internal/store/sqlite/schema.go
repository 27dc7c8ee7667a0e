package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	parent_id TEXT REFERENCES tasks(id),
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	priority_score REAL NOT NULL DEFAULT 50,
	prd TEXT NOT NULL DEFAULT '',
	context_digest TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS task_dependencies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	dependent_task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	dependency_task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	created_at DATETIME NOT NULL,
	UNIQUE(dependent_task_id, dependency_task_id),
	CHECK(dependent_task_id <> dependency_task_id)
);

CREATE TABLE IF NOT EXISTS context_slices (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	context_type TEXT NOT NULL DEFAULT 'general',
	task_id TEXT REFERENCES tasks(id) ON DELETE CASCADE,
	context_digest TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_parent_id ON tasks(parent_id);
CREATE INDEX IF NOT EXISTS idx_task_dependencies_dependent ON task_dependencies(dependent_task_id);
CREATE INDEX IF NOT EXISTS idx_task_dependencies_dependency ON task_dependencies(dependency_task_id);
`
