package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/grantline/proposal-cli/internal/model"
)

// Pool abstracts pgxpool.Pool for unit testing with pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	metadata     JSONB,
	rfp_norm     JSONB,
	facts        JSONB,
	coverage     JSONB,
	conflict_log JSONB,
	eligibility  JSONB,
	doc_version  BIGINT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS uploads (
	project_id TEXT NOT NULL REFERENCES projects(id),
	upload_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (project_id, upload_id)
);

CREATE TABLE IF NOT EXISTS bundle_entries (
	project_id TEXT NOT NULL REFERENCES projects(id),
	upload_id  TEXT NOT NULL,
	position   INT NOT NULL,
	entry      JSONB NOT NULL,
	PRIMARY KEY (project_id, upload_id)
);

CREATE TABLE IF NOT EXISTS sections (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	key        TEXT NOT NULL,
	title      TEXT NOT NULL,
	prompt     TEXT NOT NULL DEFAULT '',
	required   BOOLEAN NOT NULL DEFAULT false,
	ord        INT NOT NULL DEFAULT 0,
	word_limit INT NOT NULL DEFAULT 0,
	page_limit DOUBLE PRECISION NOT NULL DEFAULT 0,
	provenance JSONB,
	content_md TEXT NOT NULL DEFAULT '',
	format     JSONB,
	UNIQUE (project_id, key)
);

CREATE TABLE IF NOT EXISTS workflow_runs (
	id          TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL REFERENCES projects(id),
	workflow_id TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	input       JSONB,
	result      JSONB,
	error       TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_events (
	run_id  TEXT NOT NULL REFERENCES workflow_runs(id),
	seq     INT NOT NULL,
	type    TEXT NOT NULL,
	payload JSONB,
	at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS fact_events (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	fact       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_project_status ON workflow_runs(project_id, status);
CREATE INDEX IF NOT EXISTS idx_sections_project_ord ON sections(project_id, ord);
CREATE INDEX IF NOT EXISTS idx_fact_events_project ON fact_events(project_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, name string, metadata map[string]string) (*model.Project, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal metadata")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO projects (id, name, metadata, doc_version, created_at, updated_at) VALUES ($1, $2, $3, 0, $4, $5)`,
		id, name, metaJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert project")
	}

	return &model.Project{ID: id, Name: name, Metadata: metadata, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	var p model.Project
	var metaJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, metadata, doc_version, created_at, updated_at FROM projects WHERE id = $1`,
		projectID,
	).Scan(&p.ID, &p.Name, &metaJSON, &p.DocVersion, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "project %s", projectID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get project")
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &p.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metadata")
		}
	}
	return &p, nil
}

func (s *PostgresStore) GetDocField(ctx context.Context, projectID string, field model.DocField) (json.RawMessage, int64, error) {
	col, ok := docFieldColumns[field]
	if !ok {
		return nil, 0, eris.Errorf("postgres: unknown doc field %q", field)
	}

	var value []byte
	var version int64
	err := s.pool.QueryRow(ctx,
		`SELECT `+col+`, doc_version FROM projects WHERE id = $1`, projectID,
	).Scan(&value, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, eris.Wrapf(ErrNotFound, "project %s", projectID)
	}
	if err != nil {
		return nil, 0, eris.Wrapf(err, "postgres: get doc field %s", field)
	}
	if len(value) == 0 {
		return nil, version, nil
	}
	return json.RawMessage(value), version, nil
}

func (s *PostgresStore) PutDocField(ctx context.Context, projectID string, field model.DocField, value json.RawMessage, expectVersion int64) (int64, error) {
	col, ok := docFieldColumns[field]
	if !ok {
		return 0, eris.Errorf("postgres: unknown doc field %q", field)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET `+col+` = $1, doc_version = doc_version + 1, updated_at = $2 WHERE id = $3 AND doc_version = $4`,
		[]byte(value), time.Now().UTC(), projectID, expectVersion,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: put doc field %s", field)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetProject(ctx, projectID); err != nil {
			return 0, err
		}
		return 0, eris.Wrapf(ErrStaleVersion, "project %s field %s expect %d", projectID, field, expectVersion)
	}
	return expectVersion + 1, nil
}

func (s *PostgresStore) PutUpload(ctx context.Context, projectID, uploadID, name, text string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO uploads (project_id, upload_id, name, body, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (project_id, upload_id) DO UPDATE SET name = EXCLUDED.name, body = EXCLUDED.body`,
		projectID, uploadID, name, text, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put upload %s", uploadID)
}

func (s *PostgresStore) GetUpload(ctx context.Context, projectID, uploadID string) (string, error) {
	var body string
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM uploads WHERE project_id = $1 AND upload_id = $2`,
		projectID, uploadID,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", eris.Wrapf(ErrNotFound, "upload %s", uploadID)
	}
	if err != nil {
		return "", eris.Wrapf(err, "postgres: get upload %s", uploadID)
	}
	return body, nil
}

func (s *PostgresStore) ReplaceBundle(ctx context.Context, projectID string, entries []model.BundleEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace bundle")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM bundle_entries WHERE project_id = $1`, projectID); err != nil {
		return eris.Wrap(err, "postgres: clear bundle")
	}
	for i, e := range entries {
		entryJSON, err := json.Marshal(e)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal bundle entry")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO bundle_entries (project_id, upload_id, position, entry) VALUES ($1, $2, $3, $4)`,
			projectID, e.UploadID, i, entryJSON,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert bundle entry %s", e.UploadID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace bundle")
}

func (s *PostgresStore) ListBundle(ctx context.Context, projectID string) ([]model.BundleEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entry FROM bundle_entries WHERE project_id = $1 ORDER BY position`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list bundle")
	}
	defer rows.Close()

	var entries []model.BundleEntry
	for rows.Next() {
		var entryJSON []byte
		if err := rows.Scan(&entryJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan bundle entry")
		}
		var e model.BundleEntry
		if err := json.Unmarshal(entryJSON, &e); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal bundle entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list bundle iterate")
}

func (s *PostgresStore) UpsertSection(ctx context.Context, projectID string, sec model.Section) (*model.Section, error) {
	existing, err := s.GetSection(ctx, projectID, sec.Key)
	if err != nil && !eris.Is(err, ErrNotFound) {
		return nil, err
	}

	provJSON, err := json.Marshal(sec.Provenance)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal provenance")
	}

	if existing != nil {
		_, err = s.pool.Exec(ctx,
			`UPDATE sections SET title = $1, prompt = $2, required = $3, ord = $4, word_limit = $5, page_limit = $6, provenance = $7
			 WHERE project_id = $8 AND key = $9`,
			sec.Title, sec.Prompt, sec.Required, sec.Order, sec.WordLimit, sec.PageLimit, provJSON,
			projectID, sec.Key,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: update section %s", sec.Key)
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
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sections (id, project_id, key, title, prompt, required, ord, word_limit, page_limit, provenance, content_md)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, '')`,
		sec.ID, projectID, sec.Key, sec.Title, sec.Prompt, sec.Required, sec.Order, sec.WordLimit, sec.PageLimit, provJSON,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert section %s", sec.Key)
	}
	return &sec, nil
}

func (s *PostgresStore) GetSection(ctx context.Context, projectID, key string) (*model.Section, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, key, title, prompt, required, ord, word_limit, page_limit, provenance, content_md, format
		 FROM sections WHERE project_id = $1 AND key = $2`,
		projectID, key,
	)
	sec, err := scanPgSection(row)
	if eris.Is(err, ErrNotFound) {
		return nil, eris.Wrapf(ErrNotFound, "section %s", key)
	}
	return sec, err
}

func (s *PostgresStore) ListSections(ctx context.Context, projectID string) ([]model.Section, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, key, title, prompt, required, ord, word_limit, page_limit, provenance, content_md, format
		 FROM sections WHERE project_id = $1 ORDER BY ord, key`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sections")
	}
	defer rows.Close()

	var sections []model.Section
	for rows.Next() {
		sec, err := scanPgSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, *sec)
	}
	return sections, eris.Wrap(rows.Err(), "postgres: list sections iterate")
}

func (s *PostgresStore) UpdateSectionContent(ctx context.Context, projectID, key, contentMd string, format *model.FormatState) error {
	var formatJSON []byte
	if format != nil {
		b, err := json.Marshal(format)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal format state")
		}
		formatJSON = b
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE sections SET content_md = $1, format = $2 WHERE project_id = $3 AND key = $4`,
		contentMd, formatJSON, projectID, key,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update section content %s", key)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "section %s", key)
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, projectID, workflowID string, input json.RawMessage) (*model.WorkflowRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO workflow_runs (id, project_id, workflow_id, status, input, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, projectID, workflowID, string(model.RunStatusRunning), pgJSON(input), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) AppendRunEvent(ctx context.Context, runID string, typ model.RunEventType, payload json.RawMessage) (int, error) {
	var seq int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO run_events (run_id, seq, type, payload, at)
		 SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4 FROM run_events WHERE run_id = $1
		 RETURNING seq`,
		runID, string(typ), pgJSON(payload), time.Now().UTC(),
	).Scan(&seq)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: insert run event %s", typ)
	}
	return seq, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, result json.RawMessage, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE workflow_runs SET status = $1, result = $2, error = $3, updated_at = $4 WHERE id = $5`,
		string(status), pgJSON(result), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.WorkflowRun, error) {
	run, err := scanPgRun(s.pool.QueryRow(ctx,
		`SELECT id, project_id, workflow_id, status, input, result, error, created_at, updated_at
		 FROM workflow_runs WHERE id = $1`,
		runID,
	))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT seq, type, payload, at FROM run_events WHERE run_id = $1 ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list run events")
	}
	defer rows.Close()

	for rows.Next() {
		var ev model.RunEvent
		var payload []byte
		if err := rows.Scan(&ev.Seq, &ev.Type, &payload, &ev.At); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run event")
		}
		if len(payload) > 0 {
			ev.Payload = json.RawMessage(payload)
		}
		run.Events = append(run.Events, ev)
	}
	return run, eris.Wrap(rows.Err(), "postgres: run events iterate")
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.WorkflowRun, error) {
	query := `SELECT id, project_id, workflow_id, status, input, result, error, created_at, updated_at
	          FROM workflow_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + itoa(len(args))
	}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		query += ` AND project_id = $` + itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.WorkflowRun
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ActiveRun(ctx context.Context, projectID string) (*model.WorkflowRun, error) {
	run, err := scanPgRun(s.pool.QueryRow(ctx,
		`SELECT id, project_id, workflow_id, status, input, result, error, created_at, updated_at
		 FROM workflow_runs WHERE project_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1`,
		projectID, string(model.RunStatusRunning),
	))
	if eris.Is(err, ErrNotFound) {
		return nil, nil
	}
	return run, err
}

func (s *PostgresStore) AppendFactEvent(ctx context.Context, projectID string, fact model.Fact) error {
	factJSON, err := json.Marshal(fact)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal fact")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO fact_events (id, project_id, fact, created_at) VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), projectID, factJSON, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: insert fact event")
}

func (s *PostgresStore) ListFactEvents(ctx context.Context, projectID string) ([]model.Fact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT fact FROM fact_events WHERE project_id = $1 ORDER BY created_at`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list fact events")
	}
	defer rows.Close()

	var facts []model.Fact
	for rows.Next() {
		var factJSON []byte
		if err := rows.Scan(&factJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fact event")
		}
		var f model.Fact
		if err := json.Unmarshal(factJSON, &f); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal fact event")
		}
		facts = append(facts, f)
	}
	return facts, eris.Wrap(rows.Err(), "postgres: fact events iterate")
}

// helpers

func pgJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func scanPgSection(row pgx.Row) (*model.Section, error) {
	var sec model.Section
	var provJSON, formatJSON []byte

	err := row.Scan(&sec.ID, &sec.Key, &sec.Title, &sec.Prompt, &sec.Required, &sec.Order,
		&sec.WordLimit, &sec.PageLimit, &provJSON, &sec.ContentMd, &formatJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan section")
	}

	if len(provJSON) > 0 {
		if err := json.Unmarshal(provJSON, &sec.Provenance); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal provenance")
		}
	}
	if len(formatJSON) > 0 {
		sec.Format = &model.FormatState{}
		if err := json.Unmarshal(formatJSON, sec.Format); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal format state")
		}
	}
	return &sec, nil
}

func scanPgRun(row pgx.Row) (*model.WorkflowRun, error) {
	var r model.WorkflowRun
	var input, result []byte
	var errMsg *string

	err := row.Scan(&r.ID, &r.ProjectID, &r.WorkflowID, &r.Status, &input, &result, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	if len(input) > 0 {
		r.Input = json.RawMessage(input)
	}
	if len(result) > 0 {
		r.Result = json.RawMessage(result)
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return &r, nil
}
