package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avelins/traintrack/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var _ Store = (*PsqlStore)(nil)

// PsqlStore keeps documents in a single key->jsonb table.
type PsqlStore struct {
	db *pgxpool.Pool
}

func NewPsqlStore(ctx context.Context, dbHost, dbPort, dbName string, tracingEnabled bool) (*PsqlStore, error) {
	connString := fmt.Sprintf("postgres://postgres@%s:%s/%s", dbHost, dbPort, dbName)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = tracing.NewPgxOtelTracer(tracingEnabled, tracing.GlobalTracer)

	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("kv store unable to connect to database: %w", err)
	}

	log.Debugf("kv store connected to: %s", connString)

	return &PsqlStore{
		db: dbPool,
	}, nil
}

func (ps *PsqlStore) CloseDB() {
	if ps.db != nil {
		ps.db.Close()
	}
}

func (ps *PsqlStore) Get(ctx context.Context, key string) (_ []byte, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.psql.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var value []byte
	err = ps.db.QueryRow(
		ctx,
		`SELECT value FROM kv_document WHERE key = $1;`,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("get document %s: %w", key, err)
	}

	return value, nil
}

func (ps *PsqlStore) Set(ctx context.Context, key string, value []byte) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.psql.set")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, err = ps.db.Exec(
		ctx,
		`INSERT INTO kv_document (key, value, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now();`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set document %s: %w", key, err)
	}
	return nil
}

func (ps *PsqlStore) Delete(ctx context.Context, key string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.psql.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if _, err = ps.db.Exec(ctx, `DELETE FROM kv_document WHERE key = $1;`, key); err != nil {
		return fmt.Errorf("delete document %s: %w", key, err)
	}
	return nil
}

func (ps *PsqlStore) Keys(ctx context.Context, prefix string) (_ []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.psql.keys")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := ps.db.Query(
		ctx,
		`SELECT key FROM kv_document WHERE key LIKE $1 || '%';`,
		prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("list document keys %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return keys, nil
}
