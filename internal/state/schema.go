package state

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT PRIMARY KEY,
    banner      TEXT,
    started_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS executions (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    session         TEXT NOT NULL,
    execution_count INTEGER NOT NULL,
    code            TEXT NOT NULL,
    status          TEXT NOT NULL,
    stdout          TEXT,
    stderr          TEXT,
    executed_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS executions_session ON executions (session, id);
`

// MySQL rejects multi-statement Exec without multiStatements=true in the
// DSN, so its schema is applied one statement at a time.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
    id          VARCHAR(36) PRIMARY KEY,
    banner      TEXT,
    started_at  BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS executions (
    id              BIGINT PRIMARY KEY AUTO_INCREMENT,
    session         VARCHAR(36) NOT NULL,
    execution_count INT NOT NULL,
    code            MEDIUMTEXT NOT NULL,
    status          VARCHAR(16) NOT NULL,
    stdout          MEDIUMTEXT,
    stderr          MEDIUMTEXT,
    executed_at     BIGINT NOT NULL,
    INDEX executions_session (session, id)
)`,
}
