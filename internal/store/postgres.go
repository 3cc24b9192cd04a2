package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/tabimport/internal/core"
)

// pgUniqueViolation is the SQLSTATE for a unique constraint violation.
const pgUniqueViolation = "23505"

// PGTemplates stores templates in the import_templates table.
type PGTemplates struct {
	pool *pgxpool.Pool
}

// NewPGTemplates creates a Postgres template store.
func NewPGTemplates(pool *pgxpool.Pool) *PGTemplates {
	return &PGTemplates{pool: pool}
}

var _ core.TemplateStore = (*PGTemplates)(nil)

const templateColumns = `id, name, table_name, mappings, created_at, updated_at`

func (s *PGTemplates) List(ctx context.Context, tableName string) ([]core.MappingTemplate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM import_templates WHERE table_name = $1 ORDER BY lower(name)`,
		tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := make([]core.MappingTemplate, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *PGTemplates) Get(ctx context.Context, id string) (core.MappingTemplate, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return core.MappingTemplate{}, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	}
	row := s.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM import_templates WHERE id = $1`, uid)
	t, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.MappingTemplate{}, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	}
	return t, err
}

func (s *PGTemplates) Create(ctx context.Context, name, tableName string, mappings []core.ColumnMapping) (core.MappingTemplate, error) {
	mappingJSON, err := json.Marshal(mappings)
	if err != nil {
		return core.MappingTemplate{}, fmt.Errorf("marshal mappings: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO import_templates (id, name, table_name, mappings)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+templateColumns,
		uuid.New(), name, tableName, mappingJSON)
	t, err := scanTemplate(row)
	if isUniqueViolation(err) {
		return core.MappingTemplate{}, fmt.Errorf("%w: %q for table %s", core.ErrTemplateExists, name, tableName)
	}
	return t, err
}

func (s *PGTemplates) Update(ctx context.Context, id, name string, mappings []core.ColumnMapping) (core.MappingTemplate, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return core.MappingTemplate{}, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	}
	mappingJSON, err := json.Marshal(mappings)
	if err != nil {
		return core.MappingTemplate{}, fmt.Errorf("marshal mappings: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE import_templates SET name = $2, mappings = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+templateColumns,
		uid, name, mappingJSON)
	t, err := scanTemplate(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return core.MappingTemplate{}, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	case isUniqueViolation(err):
		return core.MappingTemplate{}, fmt.Errorf("%w: %q", core.ErrTemplateExists, name)
	}
	return t, err
}

func (s *PGTemplates) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM import_templates WHERE id = $1`, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	}
	return nil
}

func scanTemplate(row pgx.Row) (core.MappingTemplate, error) {
	var (
		t           core.MappingTemplate
		id          uuid.UUID
		mappingJSON []byte
	)
	if err := row.Scan(&id, &t.Name, &t.TableName, &mappingJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return core.MappingTemplate{}, err
	}
	t.ID = id.String()
	if err := json.Unmarshal(mappingJSON, &t.Mappings); err != nil {
		return core.MappingTemplate{}, fmt.Errorf("unmarshal mappings: %w", err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// PGAudit stores the audit log in the import_audit table, trimmed to the
// newest max entries on every append.
type PGAudit struct {
	pool *pgxpool.Pool
	max  int
}

// NewPGAudit creates a Postgres audit store keeping at most max entries.
func NewPGAudit(pool *pgxpool.Pool, max int) *PGAudit {
	if max <= 0 {
		max = DefaultAuditEntries
	}
	return &PGAudit{pool: pool, max: max}
}

var _ core.AuditStore = (*PGAudit)(nil)

func (s *PGAudit) Append(ctx context.Context, e core.AuditLog) error {
	errorsJSON, err := json.Marshal(e.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}
	id, err := uuid.Parse(e.ID)
	if err != nil {
		id = uuid.New()
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO import_audit
			   (id, ts, file_name, file_size, table_name, total_rows, successful_rows, failed_rows, errors, duration_ms,
			    client_ip, user_agent)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			id, e.Timestamp, e.FileName, e.FileSize, e.TableName,
			e.TotalRows, e.SuccessfulRows, e.FailedRows, errorsJSON, e.DurationMS,
			e.ClientIP, e.UserAgent)
		if err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}

		_, err = tx.Exec(ctx,
			`DELETE FROM import_audit WHERE id NOT IN
			   (SELECT id FROM import_audit ORDER BY ts DESC, id LIMIT $1)`,
			s.max)
		if err != nil {
			return fmt.Errorf("trim audit log: %w", err)
		}
		return nil
	})
}

func (s *PGAudit) List(ctx context.Context, limit int) ([]core.AuditLog, error) {
	if limit <= 0 || limit > s.max {
		limit = s.max
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, ts, file_name, file_size, table_name, total_rows, successful_rows, failed_rows, errors, duration_ms,
		        client_ip, user_agent
		 FROM import_audit ORDER BY ts DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]core.AuditLog, 0)
	for rows.Next() {
		var (
			e          core.AuditLog
			id         uuid.UUID
			errorsJSON []byte
		)
		err := rows.Scan(&id, &e.Timestamp, &e.FileName, &e.FileSize, &e.TableName,
			&e.TotalRows, &e.SuccessfulRows, &e.FailedRows, &errorsJSON, &e.DurationMS,
			&e.ClientIP, &e.UserAgent)
		if err != nil {
			return nil, err
		}
		e.ID = id.String()
		if err := json.Unmarshal(errorsJSON, &e.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal errors: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PGAudit) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM import_audit WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
