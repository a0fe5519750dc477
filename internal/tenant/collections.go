package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/crewdeck-hr/crewdeck-hr/internal/shared"
)

// Document is a permissive key-value record for entities without a
// formal shape yet.
type Document map[string]any

var entityNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// Collection is a typed accessor over one logical entity's records,
// backed by a JSONB document table inside the tenant store.
type Collection struct {
	entity string
	table  string
	store  Querier
}

// Collection returns the accessor for a logical entity, creating the
// backing table on first use. The call is idempotent per (handle,
// entity): repeated calls return the already registered accessor.
func (h *Handle) Collection(ctx context.Context, entity string) (*Collection, error) {
	if !entityNamePattern.MatchString(entity) {
		return nil, fmt.Errorf("tenant: invalid entity name %q", entity)
	}

	h.mu.Lock()
	if c, ok := h.collections[entity]; ok {
		h.mu.Unlock()
		return c, nil
	}
	h.mu.Unlock()

	c := &Collection{
		entity: entity,
		table:  "doc_" + entity,
		store:  h.store,
	}
	if err := c.ensureTable(ctx); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// A racing registration wins; keep the first accessor.
	if existing, ok := h.collections[entity]; ok {
		return existing, nil
	}
	h.collections[entity] = c
	return c, nil
}

func (c *Collection) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		doc JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, c.table)
	if _, err := c.store.Exec(ctx, ddl); err != nil && !isDuplicateObject(err) {
		return fmt.Errorf("tenant: ensure collection %s: %w", c.entity, err)
	}
	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_doc_idx ON %s USING GIN (doc)`, c.table, c.table)
	if _, err := c.store.Exec(ctx, idx); err != nil && !isDuplicateObject(err) {
		return fmt.Errorf("tenant: ensure collection index %s: %w", c.entity, err)
	}
	return nil
}

// duplicate_table / duplicate_object from a racing creator means the
// collection already exists, which is success here.
func isDuplicateObject(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P07" || pgErr.Code == "42710"
	}
	return false
}

// Entity returns the logical entity name.
func (c *Collection) Entity() string { return c.entity }

// Insert stores a new document under id.
func (c *Collection) Insert(ctx context.Context, id string, doc Document) error {
	payload, err := marshalDoc(id, doc)
	if err != nil {
		return err
	}
	sql := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2)`, c.table)
	if _, err := c.store.Exec(ctx, sql, id, payload); err != nil {
		return fmt.Errorf("tenant: insert into %s: %w", c.entity, err)
	}
	return nil
}

// Update replaces the document stored under id.
func (c *Collection) Update(ctx context.Context, id string, doc Document) error {
	payload, err := marshalDoc(id, doc)
	if err != nil {
		return err
	}
	sql := fmt.Sprintf(`UPDATE %s SET doc = $2, updated_at = now() WHERE id = $1`, c.table)
	tag, err := c.store.Exec(ctx, sql, id, payload)
	if err != nil {
		return fmt.Errorf("tenant: update %s: %w", c.entity, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenant: update %s %s: %w", c.entity, id, shared.ErrNotFound)
	}
	return nil
}

// Delete removes the document stored under id.
func (c *Collection) Delete(ctx context.Context, id string) error {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, c.table)
	tag, err := c.store.Exec(ctx, sql, id)
	if err != nil {
		return fmt.Errorf("tenant: delete from %s: %w", c.entity, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenant: delete %s %s: %w", c.entity, id, shared.ErrNotFound)
	}
	return nil
}

// Get loads one document by id.
func (c *Collection) Get(ctx context.Context, id string) (Document, error) {
	sql := fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, c.table)
	var raw []byte
	if err := c.store.QueryRow(ctx, sql, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("tenant: %s %s: %w", c.entity, id, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("tenant: get from %s: %w", c.entity, err)
	}
	return unmarshalDoc(raw)
}

// Find returns every document containing the filter (JSONB
// containment). A nil or empty filter returns all documents.
func (c *Collection) Find(ctx context.Context, filter Document) ([]Document, error) {
	if len(filter) == 0 {
		return c.FindWhere(ctx, "TRUE")
	}
	payload, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("tenant: marshal filter for %s: %w", c.entity, err)
	}
	return c.FindWhere(ctx, "doc @> $1", payload)
}

// FindWhere returns documents matching a raw predicate over the doc
// column. Callers own predicate safety; only code in this module
// builds predicates.
func (c *Collection) FindWhere(ctx context.Context, predicate string, args ...any) ([]Document, error) {
	sql := fmt.Sprintf(`SELECT doc FROM %s WHERE %s ORDER BY created_at`, c.table, predicate)
	rows, err := c.store.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("tenant: find in %s: %w", c.entity, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("tenant: scan %s: %w", c.entity, err)
		}
		doc, err := unmarshalDoc(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenant: find in %s: %w", c.entity, err)
	}
	return docs, nil
}

func marshalDoc(id string, doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}
	doc["id"] = id
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("tenant: marshal document: %w", err)
	}
	return payload, nil
}

func unmarshalDoc(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("tenant: unmarshal document: %w", err)
	}
	return doc, nil
}
