package solosh

import (
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// HistoryManager persists a log of completed jobs to SQLite, purely as an
// observability aid for the interactive user. This is distinct
// from the Job Registry: the Registry tracks only currently-live jobs and
// is never persisted, so a shell restart starts with an empty job table
// exactly as the spec requires, even though past sessions remain visible
// in this log.
type HistoryManager struct {
	db *sql.DB
}

// NewHistoryManager opens (creating if necessary) the history database at
// dbPath, or ~/.solosh_history.sqlite if dbPath is empty.
func NewHistoryManager(dbPath string) (*HistoryManager, error) {
	if dbPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(homeDir, ".solosh_history.sqlite")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &HistoryManager{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS job_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	name TEXT NOT NULL,
	pgid INTEGER NOT NULL,
	stage_count INTEGER NOT NULL,
	exit_status INTEGER NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);`

// Record appends one completed Job to the log.
func (h *HistoryManager) Record(sessionID string, job *Job, exitStatus int, startedAt time.Time) error {
	_, err := h.db.Exec(
		`INSERT INTO job_history (session_id, name, pgid, stage_count, exit_status, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, job.Name, job.Pgid, len(job.Spec.Stages), exitStatus, startedAt, time.Now(),
	)
	return err
}

// Dump returns every recorded job line, most recent last, one formatted
// line per job. No shell builtin calls it.
func (h *HistoryManager) Dump() ([]string, error) {
	rows, err := h.db.Query(`SELECT name, exit_status, finished_at FROM job_history ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		var status int
		var finishedAt time.Time
		if err := rows.Scan(&name, &status, &finishedAt); err != nil {
			return nil, err
		}
		out = append(out, strings.TrimSpace(name)+"  ["+finishedAt.Format(time.Kitchen)+", exit "+strconv.Itoa(status)+"]")
	}
	return out, rows.Err()
}

func (h *HistoryManager) Close() error {
	return h.db.Close()
}
