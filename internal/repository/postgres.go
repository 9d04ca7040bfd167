// Package repository provides the rule sources the rule cache reads from.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"urgency_detector/internal/rules"
)

const listRulesSQL = `SELECT urgency_rule_id,
       COALESCE(urgency_rule_title, ''),
       COALESCE(urgency_rule_tags_include, '{}'),
       COALESCE(urgency_rule_tags_exclude, '{}')
FROM urgency_rules
ORDER BY urgency_rule_id`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Postgres reads rules from the urgency_rules table.
type Postgres struct {
	db    querier
	close func()
}

// OpenPostgres connects a pool to dsn and verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: pool, close: pool.Close}, nil
}

func (p *Postgres) ListRules(ctx context.Context) ([]rules.Rule, error) {
	rows, err := p.db.Query(ctx, listRulesSQL)
	if err != nil {
		return nil, fmt.Errorf("query urgency rules: %w", err)
	}
	defer rows.Close()

	out := make([]rules.Rule, 0)
	for rows.Next() {
		var r rules.Rule
		if err := rows.Scan(&r.ID, &r.Title, &r.Include, &r.Exclude); err != nil {
			return nil, fmt.Errorf("scan urgency rule: %w", err)
		}
		r.Include = rules.LowerPhrases(r.Include)
		r.Exclude = rules.LowerPhrases(r.Exclude)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read urgency rules: %w", err)
	}
	return out, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *Postgres) Close() {
	if p.close != nil {
		p.close()
	}
}
