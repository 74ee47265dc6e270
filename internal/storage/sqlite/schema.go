package sqlite

const schemaSQL = `
-- Import/export jobs
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	source_dir TEXT NOT NULL DEFAULT '',
	output_dir TEXT NOT NULL DEFAULT '',
	source_job_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	total_files INTEGER NOT NULL DEFAULT 0,
	processed_files INTEGER NOT NULL DEFAULT 0,
	current_filename TEXT NOT NULL DEFAULT '',
	error_count INTEGER NOT NULL DEFAULT 0,
	exact_groups INTEGER NOT NULL DEFAULT 0,
	similar_groups INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	started_at INTEGER,
	completed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, created_at DESC);

-- Per-file records, one row per discovered media file
CREATE TABLE IF NOT EXISTS files (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	source_path TEXT NOT NULL,
	file_name TEXT NOT NULL,
	extension TEXT NOT NULL,
	file_size INTEGER NOT NULL DEFAULT 0,
	mime_type TEXT NOT NULL DEFAULT '',
	is_video INTEGER NOT NULL DEFAULT 0,
	content_hash TEXT,
	perceptual_hash TEXT,
	final_timestamp INTEGER,
	confidence TEXT NOT NULL DEFAULT 'none',
	timestamp_source TEXT NOT NULL DEFAULT '',
	candidates TEXT NOT NULL DEFAULT '[]',
	exact_group_id TEXT NOT NULL DEFAULT '',
	similar_group_id TEXT NOT NULL DEFAULT '',
	similar_kind TEXT NOT NULL DEFAULT '',
	similar_confidence TEXT NOT NULL DEFAULT '',
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	quality_score REAL NOT NULL DEFAULT 0,
	reviewed INTEGER NOT NULL DEFAULT 0,
	discarded INTEGER NOT NULL DEFAULT 0,
	thumbnail_path TEXT NOT NULL DEFAULT '',
	output_path TEXT NOT NULL DEFAULT '',
	exported_at INTEGER,
	export_error TEXT NOT NULL DEFAULT '',
	process_error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	processed_at INTEGER,
	UNIQUE(job_id, source_path)
);

CREATE INDEX IF NOT EXISTS idx_files_job ON files(job_id, source_path);
CREATE INDEX IF NOT EXISTS idx_files_pending ON files(job_id) WHERE processed_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_files_content_hash ON files(job_id, content_hash);
CREATE INDEX IF NOT EXISTS idx_files_exact_group ON files(exact_group_id) WHERE exact_group_id != '';
CREATE INDEX IF NOT EXISTS idx_files_similar_group ON files(similar_group_id) WHERE similar_group_id != '';
CREATE INDEX IF NOT EXISTS idx_files_timestamp ON files(job_id, final_timestamp);

-- Tags from directory names, filename syntax and the API
CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id TEXT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	source TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE(file_id, name)
);

CREATE INDEX IF NOT EXISTS idx_tags_file ON tags(file_id);
CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name);

-- Review audit trail
CREATE TABLE IF NOT EXISTS user_decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id TEXT NOT NULL DEFAULT '',
	group_id TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_group ON user_decisions(group_id);
CREATE INDEX IF NOT EXISTS idx_decisions_file ON user_decisions(file_id);

-- Settings overrides persisted through the API
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`
