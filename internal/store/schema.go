package store

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS features (
	key TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS user_roles (
	user_id TEXT NOT NULL,
	role TEXT NOT NULL,
	PRIMARY KEY (user_id, role)
);

CREATE TABLE IF NOT EXISTS plans (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	tier_level INTEGER NOT NULL DEFAULT 0,
	is_purchasable INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS plan_features (
	plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
	feature_key TEXT NOT NULL,
	PRIMARY KEY (plan_id, feature_key)
);

CREATE TABLE IF NOT EXISTS subscriptions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	plan_id TEXT NOT NULL REFERENCES plans(id),
	status TEXT NOT NULL,
	current_period_end INTEGER
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions(user_id);

CREATE TABLE IF NOT EXISTS programs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	plan_id TEXT REFERENCES plans(id)
);

CREATE TABLE IF NOT EXISTS enrollments (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	program_id TEXT NOT NULL REFERENCES programs(id),
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	completed_at INTEGER,
	expires_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_enrollments_user_program ON enrollments(user_id, program_id);

CREATE TABLE IF NOT EXISTS add_ons (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS add_on_features (
	add_on_id TEXT NOT NULL REFERENCES add_ons(id) ON DELETE CASCADE,
	feature_key TEXT NOT NULL,
	PRIMARY KEY (add_on_id, feature_key)
);

CREATE TABLE IF NOT EXISTS user_add_ons (
	user_id TEXT NOT NULL,
	add_on_id TEXT NOT NULL REFERENCES add_ons(id),
	granted_at INTEGER NOT NULL,
	expires_at INTEGER,
	PRIMARY KEY (user_id, add_on_id)
);

CREATE TABLE IF NOT EXISTS tracks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS track_features (
	track_id TEXT NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
	feature_key TEXT NOT NULL,
	PRIMARY KEY (track_id, feature_key)
);

CREATE TABLE IF NOT EXISTS user_tracks (
	user_id TEXT NOT NULL,
	track_id TEXT NOT NULL REFERENCES tracks(id),
	is_active INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (user_id, track_id)
);

CREATE TABLE IF NOT EXISTS organizations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	admin_managed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS org_members (
	org_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	PRIMARY KEY (org_id, user_id)
);

CREATE TABLE IF NOT EXISTS org_sponsorships (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	org_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
	feature_pattern TEXT NOT NULL,
	expires_at INTEGER
);

CREATE TABLE IF NOT EXISTS usage_limits (
	source TEXT NOT NULL,
	feature_key TEXT NOT NULL,
	monthly_limit INTEGER NOT NULL,
	PRIMARY KEY (source, feature_key)
);

CREATE TABLE IF NOT EXISTS feature_usage (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	feature_key TEXT NOT NULL,
	source TEXT NOT NULL,
	used_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feature_usage_lookup ON feature_usage(user_id, feature_key, source, used_at);

CREATE TABLE IF NOT EXISTS system_settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at INTEGER NOT NULL
);
`
