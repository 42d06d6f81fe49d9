package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/grantline/proposal-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	metadata     TEXT,
	rfp_norm     TEXT,
	facts        TEXT,
	coverage     TEXT,
	conflict_log TEXT,
	eligibility  TEXT,
	doc_version  INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS uploads (
	project_id TEXT NOT NULL REFERENCES projects(id),
	upload_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (project_id, upload_id)
);

CREATE TABLE IF NOT EXISTS bundle_entries (
	project_id TEXT NOT NULL REFERENCES projects(id),
	upload_id  TEXT NOT NULL,
	position   INTEGER NOT NULL,
	entry      TEXT NOT NULL,
	PRIMARY KEY (project_id, upload_id)
);

CREATE TABLE IF NOT EXISTS sections (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	key        TEXT NOT NULL,
	title      TEXT NOT NULL,
	prompt     TEXT NOT NULL DEFAULT '',
	required   INTEGER NOT NULL DEFAULT 0,
	ord        INTEGER NOT NULL DEFAULT 0,
	word_limit INTEGER NOT NULL DEFAULT 0,
	page_limit REAL NOT NULL DEFAULT 0,
	provenance TEXT,
	content_md TEXT NOT NULL DEFAULT '',
	format     TEXT,
	UNIQUE (project_id, key)
);

CREATE TABLE IF NOT EXISTS workflow_runs (
	id          TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL REFERENCES projects(id),
	workflow_id TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	input       TEXT,
	result      TEXT,
	error       TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_events (
	run_id  TEXT NOT NULL REFERENCES workflow_runs(id),
	seq     INTEGER NOT NULL,
	type    TEXT NOT NULL,
	payload TEXT,
	at      DATETIME NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS fact_events (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	fact       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_project_status ON workflow_runs(project_id, status);
CREATE INDEX IF NOT EXISTS idx_sections_project_ord ON sections(project_id, ord);
CREATE INDEX IF NOT EXISTS idx_fact_events_project ON fact_events(project_id);
`

// docFieldColumns whitelists the project document columns addressable via
// GetDocField/PutDocField.
var docFieldColumns = map[model.DocField]string{
	model.DocRFPNorm:     "rfp_norm",
	model.DocFacts:       "facts",
	model.DocCoverage:    "coverage",
	model.DocConflictLog: "conflict_log",
	model.DocEligibility: "eligibility",
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateProject(ctx context.Context, name string, metadata map[string]string) (*model.Project, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal metadata")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, metadata, doc_version, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)`,
		id, name, string(metaJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert project")
	}

	return &model.Project{
		ID:        id,
		Name:      name,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, metadata, doc_version, created_at, updated_at FROM projects WHERE id = ?`,
		projectID,
	)

	var p model.Project
	var metaJSON sql.NullString
	err := row.Scan(&p.ID, &p.Name, &metaJSON, &p.DocVersion, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "project %s", projectID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get project")
	}
	if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
		if err := json.Unmarshal([]byte(metaJSON.String), &p.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal metadata")
		}
	}
	return &p, nil
}

func (s *SQLiteStore) GetDocField(ctx context.Context, projectID string, field model.DocField) (json.RawMessage, int64, error) {
	col, ok := docFieldColumns[field]
	if !ok {
		return nil, 0, eris.Errorf("sqlite: unknown doc field %q", field)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+col+`, doc_version FROM projects WHERE id = ?`, projectID,
	)

	var value sql.NullString
	var version int64
	err := row.Scan(&value, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, eris.Wrapf(ErrNotFound, "project %s", projectID)
	}
	if err != nil {
		return nil, 0, eris.Wrapf(err, "sqlite: get doc field %s", field)
	}
	if !value.Valid || value.String == "" {
		return nil, version, nil
	}
	return json.RawMessage(value.String), version, nil
}

func (s *SQLiteStore) PutDocField(ctx context.Context, projectID string, field model.DocField, value json.RawMessage, expectVersion int64) (int64, error) {
	col, ok := docFieldColumns[field]
	if !ok {
		return 0, eris.Errorf("sqlite: unknown doc field %q", field)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET `+col+` = ?, doc_version = doc_version + 1, updated_at = ? WHERE id = ? AND doc_version = ?`,
		string(value), time.Now().UTC(), projectID, expectVersion,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: put doc field %s", field)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		// Distinguish a missing project from a lost race.
		if _, err := s.GetProject(ctx, projectID); err != nil {
			return 0, err
		}
		return 0, eris.Wrapf(ErrStaleVersion, "project %s field %s expect %d", projectID, field, expectVersion)
	}
	return expectVersion + 1, nil
}

func (s *SQLiteStore) PutUpload(ctx context.Context, projectID, uploadID, name, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (project_id, upload_id, name, body, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (project_id, upload_id) DO UPDATE SET name = excluded.name, body = excluded.body`,
		projectID, uploadID, name, text, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put upload %s", uploadID)
}

func (s *SQLiteStore) GetUpload(ctx context.Context, projectID, uploadID string) (string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT body FROM uploads WHERE project_id = ? AND upload_id = ?`,
		projectID, uploadID,
	)
	var body string
	err := row.Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", eris.Wrapf(ErrNotFound, "upload %s", uploadID)
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: get upload %s", uploadID)
	}
	return body, nil
}

func (s *SQLiteStore) ReplaceBundle(ctx context.Context, projectID string, entries []model.BundleEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace bundle")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bundle_entries WHERE project_id = ?`, projectID); err != nil {
		return eris.Wrap(err, "sqlite: clear bundle")
	}
	for i, e := range entries {
		entryJSON, err := json.Marshal(e)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal bundle entry")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bundle_entries (project_id, upload_id, position, entry) VALUES (?, ?, ?, ?)`,
			projectID, e.UploadID, i, string(entryJSON),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert bundle entry %s", e.UploadID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit replace bundle")
}

func (s *SQLiteStore) ListBundle(ctx context.Context, projectID string) ([]model.BundleEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry FROM bundle_entries WHERE project_id = ? ORDER BY position`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list bundle")
	}
	defer rows.Close()

	var entries []model.BundleEntry
	for rows.Next() {
		var entryJSON string
		if err := rows.Scan(&entryJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan bundle entry")
		}
		var e model.BundleEntry
		if err := json.Unmarshal([]byte(entryJSON), &e); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal bundle entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list bundle iterate")
}

func (s *SQLiteStore) UpsertSection(ctx context.Context, projectID string, sec model.Section) (*model.Section, error) {
	existing, err := s.GetSection(ctx, projectID, sec.Key)
	if err != nil && !eris.Is(err, ErrNotFound) {
		return nil, err
	}

	provJSON, err := json.Marshal(sec.Provenance)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal provenance")
	}

	if existing != nil {
		// Existing row keeps its id and content; only canonical metadata moves.
		_, err = s.db.ExecContext(ctx,
			`UPDATE sections SET title = ?, prompt = ?, required = ?, ord = ?, word_limit = ?, page_limit = ?, provenance = ?
			 WHERE project_id = ? AND key = ?`,
			sec.Title, sec.Prompt, boolInt(sec.Required), sec.Order, sec.WordLimit, sec.PageLimit, string(provJSON),
			projectID, sec.Key,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: update section %s", sec.Key)
		}
		existing.Title = sec.Title
		existing.Prompt = sec.Prompt
		existing.Required = sec.Required
		existing.Order = sec.Order
		existing.WordLimit = sec.WordLimit
		existing.PageLimit = sec.PageLimit
		existing.Provenance = sec.Provenance
		return existing, nil
	}

	sec.ID = uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sections (id, project_id, key, title, prompt, required, ord, word_limit, page_limit, provenance, content_md)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '')`,
		sec.ID, projectID, sec.Key, sec.Title, sec.Prompt, boolInt(sec.Required), sec.Order, sec.WordLimit, sec.PageLimit, string(provJSON),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert section %s", sec.Key)
	}
	return &sec, nil
}

func (s *SQLiteStore) GetSection(ctx context.Context, projectID, key string) (*model.Section, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, key, title, prompt, required, ord, word_limit, page_limit, provenance, content_md, format
		 FROM sections WHERE project_id = ? AND key = ?`,
		projectID, key,
	)
	sec, err := scanSection(row)
	if eris.Is(err, ErrNotFound) {
		return nil, eris.Wrapf(ErrNotFound, "section %s", key)
	}
	return sec, err
}

func (s *SQLiteStore) ListSections(ctx context.Context, projectID string) ([]model.Section, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, key, title, prompt, required, ord, word_limit, page_limit, provenance, content_md, format
		 FROM sections WHERE project_id = ? ORDER BY ord, key`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sections")
	}
	defer rows.Close()

	var sections []model.Section
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, *sec)
	}
	return sections, eris.Wrap(rows.Err(), "sqlite: list sections iterate")
}

func (s *SQLiteStore) UpdateSectionContent(ctx context.Context, projectID, key, contentMd string, format *model.FormatState) error {
	var formatJSON any
	if format != nil {
		b, err := json.Marshal(format)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal format state")
		}
		formatJSON = string(b)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sections SET content_md = ?, format = ? WHERE project_id = ? AND key = ?`,
		contentMd, formatJSON, projectID, key,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update section content %s", key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "section %s", key)
	}
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, projectID, workflowID string, input json.RawMessage) (*model.WorkflowRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflow_runs (id, project_id, workflow_id, status, input, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, projectID, workflowID, string(model.RunStatusRunning), nullableJSON(input), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.WorkflowRun{
		ID:         id,
		ProjectID:  projectID,
		WorkflowID: workflowID,
		Status:     model.RunStatusRunning,
		Input:      input,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *SQLiteStore) AppendRunEvent(ctx context.Context, runID string, typ model.RunEventType, payload json.RawMessage) (int, error) {
	// Single-writer per project; MAX+1 is safe without a transaction here.
	var seq int
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM run_events WHERE run_id = ?`, runID,
	)
	if err := row.Scan(&seq); err != nil {
		return 0, eris.Wrap(err, "sqlite: next event seq")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_events (run_id, seq, type, payload, at) VALUES (?, ?, ?, ?, ?)`,
		runID, seq, string(typ), nullableJSON(payload), time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: insert run event %s", typ)
	}
	return seq, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, result json.RawMessage, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE workflow_runs SET status = ?, result = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), nullableJSON(result), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.WorkflowRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, workflow_id, status, input, result, error, created_at, updated_at
		 FROM workflow_runs WHERE id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, type, payload, at FROM run_events WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list run events")
	}
	defer rows.Close()

	for rows.Next() {
		var ev model.RunEvent
		var payload sql.NullString
		if err := rows.Scan(&ev.Seq, &ev.Type, &payload, &ev.At); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run event")
		}
		if payload.Valid {
			ev.Payload = json.RawMessage(payload.String)
		}
		run.Events = append(run.Events, ev)
	}
	return run, eris.Wrap(rows.Err(), "sqlite: run events iterate")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.WorkflowRun, error) {
	query := `SELECT id, project_id, workflow_id, status, input, result, error, created_at, updated_at
	          FROM workflow_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, filter.ProjectID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.WorkflowRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ActiveRun(ctx context.Context, projectID string) (*model.WorkflowRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, workflow_id, status, input, result, error, created_at, updated_at
		 FROM workflow_runs WHERE project_id = ? AND status = ? ORDER BY created_at DESC LIMIT 1`,
		projectID, string(model.RunStatusRunning),
	)
	run, err := scanRun(row)
	if eris.Is(err, ErrNotFound) {
		return nil, nil
	}
	return run, err
}

func (s *SQLiteStore) AppendFactEvent(ctx context.Context, projectID string, fact model.Fact) error {
	factJSON, err := json.Marshal(fact)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal fact")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fact_events (id, project_id, fact, created_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), projectID, string(factJSON), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: insert fact event")
}

func (s *SQLiteStore) ListFactEvents(ctx context.Context, projectID string) ([]model.Fact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fact FROM fact_events WHERE project_id = ? ORDER BY created_at`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list fact events")
	}
	defer rows.Close()

	var facts []model.Fact
	for rows.Next() {
		var factJSON string
		if err := rows.Scan(&factJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fact event")
		}
		var f model.Fact
		if err := json.Unmarshal([]byte(factJSON), &f); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal fact event")
		}
		facts = append(facts, f)
	}
	return facts, eris.Wrap(rows.Err(), "sqlite: fact events iterate")
}

// helpers

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSection(row scannable) (*model.Section, error) {
	var sec model.Section
	var required int
	var provJSON, formatJSON sql.NullString

	err := row.Scan(&sec.ID, &sec.Key, &sec.Title, &sec.Prompt, &required, &sec.Order,
		&sec.WordLimit, &sec.PageLimit, &provJSON, &sec.ContentMd, &formatJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan section")
	}

	sec.Required = required != 0
	if provJSON.Valid && provJSON.String != "" {
		if err := json.Unmarshal([]byte(provJSON.String), &sec.Provenance); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal provenance")
		}
	}
	if formatJSON.Valid && formatJSON.String != "" {
		sec.Format = &model.FormatState{}
		if err := json.Unmarshal([]byte(formatJSON.String), sec.Format); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal format state")
		}
	}
	return &sec, nil
}

func scanRun(row scannable) (*model.WorkflowRun, error) {
	var r model.WorkflowRun
	var input, result, errMsg sql.NullString

	err := row.Scan(&r.ID, &r.ProjectID, &r.WorkflowID, &r.Status, &input, &result, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if input.Valid {
		r.Input = json.RawMessage(input.String)
	}
	if result.Valid {
		r.Result = json.RawMessage(result.String)
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	return &r, nil
}
