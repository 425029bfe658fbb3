package store

const schema = `
CREATE TABLE IF NOT EXISTS calculations (
    id           TEXT PRIMARY KEY,
    kind         TEXT NOT NULL,
    input        TEXT NOT NULL,
    input_key    TEXT NOT NULL DEFAULT '',
    values_json  TEXT NOT NULL DEFAULT '[]',
    unicode_key  TEXT NOT NULL DEFAULT '',
    bit          REAL NOT NULL,
    category     TEXT NOT NULL DEFAULT 'general',
    view_count   INTEGER NOT NULL DEFAULT 0,
    results_json TEXT NOT NULL DEFAULT '[]',
    nb_max       REAL NOT NULL DEFAULT 0,
    nb_min       REAL NOT NULL DEFAULT 0,
    difference   REAL NOT NULL DEFAULT 0,
    created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calculations_kind ON calculations(kind);
CREATE INDEX IF NOT EXISTS idx_calculations_category ON calculations(category);
CREATE INDEX IF NOT EXISTS idx_calculations_input_key ON calculations(input_key);
CREATE INDEX IF NOT EXISTS idx_calculations_unicode_key ON calculations(unicode_key);
CREATE INDEX IF NOT EXISTS idx_calculations_created_at ON calculations(created_at);
CREATE INDEX IF NOT EXISTS idx_calculations_view_count ON calculations(view_count);
`
