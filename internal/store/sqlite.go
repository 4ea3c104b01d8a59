package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/latticehq/lattice/internal/apperr"
	"github.com/latticehq/lattice/internal/core/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	path          TEXT NOT NULL DEFAULT '',
	text          TEXT NOT NULL DEFAULT '',
	doc_type      TEXT NOT NULL DEFAULT 'OTHER',
	privacy_level TEXT NOT NULL,
	source_type   TEXT NOT NULL,
	metadata      TEXT NOT NULL DEFAULT '{}',
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	entity_type   TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	privacy_level TEXT NOT NULL,
	source_type   TEXT NOT NULL,
	document_id   INTEGER,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS relations (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id     INTEGER NOT NULL,
	target_id     INTEGER NOT NULL,
	relation_type TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	privacy_level TEXT NOT NULL,
	source_type   TEXT NOT NULL,
	document_id   INTEGER,
	properties    TEXT NOT NULL DEFAULT '{}',
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_name      ON entities(name);
CREATE INDEX IF NOT EXISTS idx_relations_source   ON relations(source_id);
CREATE INDEX IF NOT EXISTS idx_relations_target   ON relations(target_id);
CREATE INDEX IF NOT EXISTS idx_relations_find     ON relations(source_id, target_id, relation_type);
`

// SQLite is the relational Store implementation.
type SQLite struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	// One connection: serializes writers and keeps :memory: databases from
	// splitting across the pool.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

func marshalJSON(m map[string]interface{}) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func unmarshalJSON(s string) map[string]interface{} {
	if s == "" || s == "{}" {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}

// ---- documents ----

func (s *SQLite) CreateDocument(ctx context.Context, in NewDocument) (*model.Document, error) {
	now := time.Now().UTC()
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO documents (path, text, doc_type, privacy_level, source_type, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Path, in.Text, string(in.Type), string(in.Privacy), string(in.Source), marshalJSON(in.Metadata), now, now)
	if err != nil {
		return nil, fmt.Errorf("store: create document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create document: %w", apperr.ErrNotPersisted)
	}
	return s.GetDocument(ctx, id)
}

func (s *SQLite) UpdateDocument(ctx context.Context, id int64, patch DocumentPatch) (*model.Document, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}
	if patch.Text != nil {
		sets = append(sets, "text = ?")
		args = append(args, *patch.Text)
	}
	if patch.Type != nil {
		sets = append(sets, "doc_type = ?")
		args = append(args, string(*patch.Type))
	}
	if patch.Metadata != nil {
		sets = append(sets, "metadata = ?")
		args = append(args, marshalJSON(patch.Metadata))
	}
	args = append(args, id)
	res, err := s.conn.ExecContext(ctx, `UPDATE documents SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: update document %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("store: update document %d: %w", id, apperr.ErrNotFound)
	}
	return s.GetDocument(ctx, id)
}

func (s *SQLite) GetDocument(ctx context.Context, id int64) (*model.Document, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, path, text, doc_type, privacy_level, source_type, metadata, created_at, updated_at
		FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: document %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get document %d: %w", id, err)
	}
	return d, nil
}

func (s *SQLite) AllDocuments(ctx context.Context) ([]model.Document, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, path, text, doc_type, privacy_level, source_type, metadata, created_at, updated_at
		FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: all documents: %w", err)
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan document: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(r rowScanner) (*model.Document, error) {
	var d model.Document
	var docType, privacy, source, metadata string
	if err := r.Scan(&d.ID, &d.Path, &d.Text, &docType, &privacy, &source, &metadata, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Type = model.DocumentType(docType)
	d.Privacy = model.PrivacyLevel(privacy)
	d.Source = model.SourceType(source)
	d.Metadata = unmarshalJSON(metadata)
	return &d, nil
}

// ---- entities ----

func (s *SQLite) CreateEntity(ctx context.Context, in NewEntity) (*model.Entity, error) {
	now := time.Now().UTC()
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO entities (name, entity_type, description, privacy_level, source_type, document_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Name, string(in.Type), in.Description, string(in.Privacy), string(in.Source), in.DocumentID, now, now)
	if err != nil {
		return nil, fmt.Errorf("store: create entity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create entity: %w", apperr.ErrNotPersisted)
	}
	return s.GetEntity(ctx, id)
}

func (s *SQLite) UpdateEntity(ctx context.Context, id int64, patch EntityPatch) (*model.Entity, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Privacy != nil {
		// Privacy is monotone toward PRIVATE; a downgrade request is ignored.
		sets = append(sets, "privacy_level = CASE WHEN privacy_level = 'PRIVATE' THEN 'PRIVATE' ELSE ? END")
		args = append(args, string(*patch.Privacy))
	}
	args = append(args, id)
	res, err := s.conn.ExecContext(ctx, `UPDATE entities SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: update entity %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("store: update entity %d: %w", id, apperr.ErrNotFound)
	}
	return s.GetEntity(ctx, id)
}

func (s *SQLite) GetEntity(ctx context.Context, id int64) (*model.Entity, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, name, entity_type, description, privacy_level, source_type, document_id, created_at, updated_at
		FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: entity %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get entity %d: %w", id, err)
	}
	return e, nil
}

func (s *SQLite) AllEntities(ctx context.Context) ([]model.Entity, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, entity_type, description, privacy_level, source_type, document_id, created_at, updated_at
		FROM entities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: all entities: %w", err)
	}
	defer rows.Close()
	return collectEntities(rows)
}

func collectEntities(rows *sql.Rows) ([]model.Entity, error) {
	var out []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan entity: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEntity(r rowScanner) (*model.Entity, error) {
	var e model.Entity
	var typ, privacy, source string
	var docID sql.NullInt64
	if err := r.Scan(&e.ID, &e.Name, &typ, &e.Description, &privacy, &source, &docID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Type = model.EntityType(typ)
	e.Privacy = model.PrivacyLevel(privacy)
	e.Source = model.SourceType(source)
	if docID.Valid {
		e.DocumentID = &docID.Int64
	}
	return &e, nil
}

// ---- relations ----

func (s *SQLite) CreateRelation(ctx context.Context, in NewRelation) (*model.Relation, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	// Both endpoints must exist at creation time.
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities WHERE id IN (?, ?)`, in.SourceID, in.TargetID).Scan(&n); err != nil {
		return nil, fmt.Errorf("store: check endpoints: %w", err)
	}
	want := 2
	if in.SourceID == in.TargetID {
		want = 1
	}
	if n != want {
		return nil, fmt.Errorf("store: relation endpoints %d -> %d: %w", in.SourceID, in.TargetID, apperr.ErrConstraint)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO relations (source_id, target_id, relation_type, description, privacy_level, source_type, document_id, properties, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.SourceID, in.TargetID, string(in.Type), in.Description, string(in.Privacy), string(in.Source), in.DocumentID, marshalJSON(in.Properties), now, now)
	if err != nil {
		return nil, fmt.Errorf("store: create relation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create relation: %w", apperr.ErrNotPersisted)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit relation: %w", err)
	}
	return s.getRelation(ctx, id)
}

func (s *SQLite) UpdateRelation(ctx context.Context, id int64, patch RelationPatch) (*model.Relation, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Privacy != nil {
		sets = append(sets, "privacy_level = CASE WHEN privacy_level = 'PRIVATE' THEN 'PRIVATE' ELSE ? END")
		args = append(args, string(*patch.Privacy))
	}
	if patch.Properties != nil {
		sets = append(sets, "properties = ?")
		args = append(args, marshalJSON(patch.Properties))
	}
	args = append(args, id)
	res, err := s.conn.ExecContext(ctx, `UPDATE relations SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: update relation %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("store: update relation %d: %w", id, apperr.ErrNotFound)
	}
	return s.getRelation(ctx, id)
}

func (s *SQLite) getRelation(ctx context.Context, id int64) (*model.Relation, error) {
	row := s.conn.QueryRowContext(ctx, relationSelect+` WHERE id = ?`, id)
	r, err := scanRelation(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: relation %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get relation %d: %w", id, err)
	}
	return r, nil
}

// FindRelation returns (nil, nil) when no matching relation exists.
func (s *SQLite) FindRelation(ctx context.Context, sourceID, targetID int64, typ model.RelationType) (*model.Relation, error) {
	row := s.conn.QueryRowContext(ctx,
		relationSelect+` WHERE source_id = ? AND target_id = ? AND relation_type = ? ORDER BY id LIMIT 1`,
		sourceID, targetID, string(typ))
	r, err := scanRelation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find relation: %w", err)
	}
	return r, nil
}

const relationSelect = `
	SELECT id, source_id, target_id, relation_type, description, privacy_level, source_type, document_id, properties, created_at, updated_at
	FROM relations`

func (s *SQLite) AllRelations(ctx context.Context) ([]model.Relation, error) {
	rows, err := s.conn.QueryContext(ctx, relationSelect+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: all relations: %w", err)
	}
	defer rows.Close()
	return collectRelations(rows)
}

func collectRelations(rows *sql.Rows) ([]model.Relation, error) {
	var out []model.Relation
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan relation: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRelation(r rowScanner) (*model.Relation, error) {
	var rel model.Relation
	var typ, privacy, source, properties string
	var docID sql.NullInt64
	if err := r.Scan(&rel.ID, &rel.SourceID, &rel.TargetID, &typ, &rel.Description, &privacy, &source, &docID, &properties, &rel.CreatedAt, &rel.UpdatedAt); err != nil {
		return nil, err
	}
	rel.Type = model.RelationType(typ)
	rel.Privacy = model.PrivacyLevel(privacy)
	rel.Source = model.SourceType(source)
	rel.Properties = unmarshalJSON(properties)
	if docID.Valid {
		rel.DocumentID = &docID.Int64
	}
	return &rel, nil
}

// ---- resolution and merge ----

func (s *SQLite) FindEntitiesByName(ctx context.Context, candidates []model.EntityCandidate, level model.PrivacyLevel) ([]model.Entity, []model.EntityCandidate, error) {
	var resolved []model.Entity
	var unresolved []model.EntityCandidate
	seen := make(map[string]bool)

	for _, c := range candidates {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true

		query := `
			SELECT id, name, entity_type, description, privacy_level, source_type, document_id, created_at, updated_at
			FROM entities WHERE name = ?`
		args := []interface{}{c.Name}
		if level == model.PrivacyPublic {
			query += ` AND privacy_level = ?`
			args = append(args, string(model.PrivacyPublic))
		}
		query += ` ORDER BY id LIMIT 1`

		row := s.conn.QueryRowContext(ctx, query, args...)
		e, err := scanEntity(row)
		if err == sql.ErrNoRows {
			unresolved = append(unresolved, c)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("store: find entity by name %q: %w", c.Name, err)
		}
		resolved = append(resolved, *e)
	}
	return resolved, unresolved, nil
}

func (s *SQLite) MergeEntities(ctx context.Context, winnerID, loserID int64) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin merge tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var winnerPrivacy, loserPrivacy string
	if err := tx.QueryRowContext(ctx, `SELECT privacy_level FROM entities WHERE id = ?`, winnerID).Scan(&winnerPrivacy); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("store: merge winner %d: %w", winnerID, apperr.ErrNotFound)
		}
		return fmt.Errorf("store: merge winner %d: %w", winnerID, err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT privacy_level FROM entities WHERE id = ?`, loserID).Scan(&loserPrivacy); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("store: merge loser %d: %w", loserID, apperr.ErrNotFound)
		}
		return fmt.Errorf("store: merge loser %d: %w", loserID, err)
	}

	now := time.Now().UTC()
	if loserPrivacy == string(model.PrivacyPrivate) && winnerPrivacy != string(model.PrivacyPrivate) {
		if _, err := tx.ExecContext(ctx, `UPDATE entities SET privacy_level = ?, updated_at = ? WHERE id = ?`,
			string(model.PrivacyPrivate), now, winnerID); err != nil {
			return fmt.Errorf("store: merge privacy upgrade: %w", err)
		}
	}

	// Re-point every edge touching the loser. Duplicate edges after the
	// rewrite are tolerated, not deduplicated.
	if _, err := tx.ExecContext(ctx, `UPDATE relations SET source_id = ?, updated_at = ? WHERE source_id = ?`, winnerID, now, loserID); err != nil {
		return fmt.Errorf("store: merge rewrite sources: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE relations SET target_id = ?, updated_at = ? WHERE target_id = ?`, winnerID, now, loserID); err != nil {
		return fmt.Errorf("store: merge rewrite targets: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, loserID); err != nil {
		return fmt.Errorf("store: merge delete loser: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit merge: %w", err)
	}
	return nil
}

// ---- traversal reads ----

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *SQLite) RelationsTouching(ctx context.Context, ids []int64) ([]model.Relation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(ids)*2)
	for _, id := range ids {
		args = append(args, id)
	}
	for _, id := range ids {
		args = append(args, id)
	}
	ph := placeholders(len(ids))
	rows, err := s.conn.QueryContext(ctx,
		relationSelect+` WHERE source_id IN (`+ph+`) OR target_id IN (`+ph+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: relations touching: %w", err)
	}
	defer rows.Close()
	return collectRelations(rows)
}

func (s *SQLite) EntitiesByIDs(ctx context.Context, ids []int64, level model.PrivacyLevel) ([]model.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `
		SELECT id, name, entity_type, description, privacy_level, source_type, document_id, created_at, updated_at
		FROM entities WHERE id IN (` + placeholders(len(ids)) + `)`
	if level == model.PrivacyPublic {
		query += ` AND privacy_level = ?`
		args = append(args, string(model.PrivacyPublic))
	}
	query += ` ORDER BY id`

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: entities by ids: %w", err)
	}
	defer rows.Close()
	return collectEntities(rows)
}
