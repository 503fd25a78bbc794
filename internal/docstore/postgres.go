package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type dbQuerier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// PostgresStore keeps every collection in one JSONB "documents" table.
type PostgresStore struct {
	db dbQuerier
}

func NewPostgresStore(db dbQuerier) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	sqlText, args, err := buildSelect(collection, q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return docs, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	err := s.db.QueryRow(
		ctx,
		`SELECT fields FROM documents WHERE collection = $1 AND id = $2`,
		collection,
		id,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return Document{}, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return Document{ID: id, Fields: fields}, nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	encoded, err := encodeFields(fields)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(
		ctx,
		`INSERT INTO documents (collection, id, fields, "createdAt", "updatedAt")
		 VALUES ($1, $2, $3::jsonb, NOW(), NOW())
		 ON CONFLICT (collection, id)
		 DO UPDATE SET fields = EXCLUDED.fields, "updatedAt" = NOW()`,
		collection,
		id,
		encoded,
	); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	encoded, err := encodeFields(fields)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(
		ctx,
		`UPDATE documents
		 SET fields = fields || $3::jsonb, "updatedAt" = NOW()
		 WHERE collection = $1 AND id = $2`,
		collection,
		id,
		encoded,
	)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := NewID()
	if err := s.Set(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	tag, err := s.db.Exec(
		ctx,
		`UPDATE documents
		 SET fields = jsonb_set(
		       fields,
		       ARRAY[$3::text],
		       to_jsonb(COALESCE((fields ->> $3::text)::numeric, 0) + $4::bigint)
		     ),
		     "updatedAt" = NOW()
		 WHERE collection = $1 AND id = $2`,
		collection,
		id,
		field,
		delta,
	)
	if err != nil {
		return fmt.Errorf("increment %s/%s.%s: %w", collection, id, field, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeFields(fields map[string]any) (string, error) {
	if fields == nil {
		return "{}", nil
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(encoded), nil
}

// buildSelect renders q as SQL over the documents table. Field names travel as
// parameters; equality compares JSON values, range filters compare strings
// bytewise and numbers numerically.
func buildSelect(collection string, q Query) (string, []any, error) {
	var b strings.Builder
	args := []any{collection}
	b.WriteString(`SELECT id, fields FROM documents WHERE collection = $1`)

	for _, f := range q.Filters {
		field := strings.TrimSpace(f.Field)
		if field == "" {
			return "", nil, errors.New("filter field must not be empty")
		}
		switch f.Op {
		case OpEqual:
			encoded, err := json.Marshal(f.Value)
			if err != nil {
				return "", nil, fmt.Errorf("encode filter %s: %w", field, err)
			}
			args = append(args, field, string(encoded))
			fmt.Fprintf(&b, ` AND fields -> $%d::text = $%d::jsonb`, len(args)-1, len(args))
		case OpGreaterOrEqual, OpLess:
			args = append(args, field)
			fieldArg := len(args)
			switch v := f.Value.(type) {
			case string:
				args = append(args, v)
				fmt.Fprintf(&b, ` AND (fields ->> $%d::text) COLLATE "C" %s $%d::text`, fieldArg, f.Op, len(args))
			case int, int64, float64:
				args = append(args, v)
				fmt.Fprintf(&b, ` AND (fields ->> $%d::text)::numeric %s $%d::numeric`, fieldArg, f.Op, len(args))
			default:
				return "", nil, fmt.Errorf("unsupported range value %T for %s", f.Value, field)
			}
		default:
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}

	order := make([]string, 0, len(q.OrderBy)+1)
	for _, o := range q.OrderBy {
		args = append(args, o.Field)
		direction := "ASC NULLS FIRST"
		if o.Direction == Descending {
			direction = "DESC NULLS LAST"
		}
		order = append(order, fmt.Sprintf(`fields -> $%d::text %s`, len(args), direction))
	}
	order = append(order, "id ASC")
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(order, ", "))

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	return b.String(), args, nil
}
