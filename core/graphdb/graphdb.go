// Package graphdb stores a converted graph in a SQLite database, numbered
// the same way as the feature files so both outputs can be cross-checked.
package graphdb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/FocuswithJustin/JuniperTF/core/errors"
	"github.com/FocuswithJustin/JuniperTF/core/graph"
	"github.com/FocuswithJustin/JuniperTF/core/tf"
)

// Schema is applied on every Save after the previous tables are dropped.
var Schema = []string{
	`CREATE TABLE node (
		id INTEGER PRIMARY KEY,
		otype TEXT NOT NULL,
		slot_key TEXT
	)`,
	`CREATE INDEX node_otype ON node (otype)`,
	`CREATE TABLE oslots (
		node INTEGER NOT NULL REFERENCES node (id),
		slot INTEGER NOT NULL REFERENCES node (id),
		PRIMARY KEY (node, slot)
	) WITHOUT ROWID`,
	`CREATE TABLE feature_meta (
		name TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		value_type TEXT NOT NULL
	)`,
	`CREATE TABLE feature (
		name TEXT NOT NULL REFERENCES feature_meta (name),
		node INTEGER NOT NULL REFERENCES node (id),
		str_value TEXT NOT NULL,
		int_value INTEGER,
		PRIMARY KEY (name, node)
	) WITHOUT ROWID`,
	`CREATE TABLE info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

var tables = []string{"feature", "feature_meta", "oslots", "node", "info"}

// Stats counts the rows written by Save.
type Stats struct {
	Nodes    int
	Slots    int
	Oslots   int
	Features int
	Values   int
}

// Save replaces the graph tables of db with g in a single transaction.
// info is stored as key/value rows.
func Save(ctx context.Context, db *sql.DB, g *graph.Graph, info map[string]string) (*Stats, error) {
	if err := g.Err(); err != nil {
		return nil, errors.Wrap(err, "graph is incomplete")
	}
	nb := tf.Canonical(g)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return nil, fmt.Errorf("failed to drop %s: %w", t, err)
		}
	}
	for _, stmt := range Schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	st := &Stats{Slots: nb.MaxSlot()}
	if err := saveNodes(ctx, tx, g, nb, st); err != nil {
		return nil, err
	}
	if err := saveFeatures(ctx, tx, g, nb, st); err != nil {
		return nil, err
	}
	if err := saveInfo(ctx, tx, info); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return st, nil
}

func saveNodes(ctx context.Context, tx *sql.Tx, g *graph.Graph, nb *tf.Numbering, st *Stats) error {
	insNode, err := tx.PrepareContext(ctx, `INSERT INTO node (id, otype, slot_key) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer insNode.Close()

	insSlot, err := tx.PrepareContext(ctx, `INSERT INTO oslots (node, slot) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare oslots insert: %w", err)
	}
	defer insSlot.Close()

	for i, id := range nb.Order {
		num := i + 1
		var key sql.NullString
		if g.IsSlot(id) {
			key = sql.NullString{String: g.SlotKey(id), Valid: true}
		}
		if _, err := insNode.ExecContext(ctx, num, g.Type(id), key); err != nil {
			return fmt.Errorf("failed to insert node %d: %w", num, err)
		}
		st.Nodes++

		if g.IsSlot(id) {
			continue
		}
		for _, s := range g.Slots(id) {
			if _, err := insSlot.ExecContext(ctx, num, nb.Number(s)); err != nil {
				return fmt.Errorf("failed to insert slots of node %d: %w", num, err)
			}
			st.Oslots++
		}
	}
	return nil
}

func saveFeatures(ctx context.Context, tx *sql.Tx, g *graph.Graph, nb *tf.Numbering, st *Stats) error {
	insMeta, err := tx.PrepareContext(ctx, `INSERT INTO feature_meta (name, description, value_type) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer insMeta.Close()

	insValue, err := tx.PrepareContext(ctx, `INSERT INTO feature (name, node, str_value, int_value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare feature insert: %w", err)
	}
	defer insValue.Close()

	meta := g.Metadata()
	names := g.FeatureNames()
	for name := range meta {
		if !g.Occurs(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		m := meta[name]
		if m.ValueType == "" {
			m.ValueType = graph.TypeStr
		}
		if _, err := insMeta.ExecContext(ctx, name, m.Description, string(m.ValueType)); err != nil {
			return fmt.Errorf("failed to insert metadata of %s: %w", name, err)
		}
		st.Features++

		for id, v := range g.Values(name) {
			num := nb.Number(id)
			if num == 0 {
				continue
			}
			var iv sql.NullInt64
			if m.ValueType == graph.TypeInt {
				if i, ok := v.AsInt(); ok {
					iv = sql.NullInt64{Int64: int64(i), Valid: true}
				}
			}
			if _, err := insValue.ExecContext(ctx, name, num, v.String(), iv); err != nil {
				return fmt.Errorf("failed to insert %s of node %d: %w", name, num, err)
			}
			st.Values++
		}
	}
	return nil
}

func saveInfo(ctx context.Context, tx *sql.Tx, info map[string]string) error {
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `INSERT INTO info (key, value) VALUES (?, ?)`, k, info[k]); err != nil {
			return fmt.Errorf("failed to insert info %s: %w", k, err)
		}
	}
	return nil
}

// ReadStats counts the rows of a saved graph.
func ReadStats(ctx context.Context, db *sql.DB) (*Stats, error) {
	st := &Stats{}
	queries := []struct {
		sql string
		dst *int
	}{
		{`SELECT COUNT(*) FROM node`, &st.Nodes},
		{`SELECT COUNT(*) FROM node WHERE slot_key IS NOT NULL`, &st.Slots},
		{`SELECT COUNT(*) FROM oslots`, &st.Oslots},
		{`SELECT COUNT(*) FROM feature_meta`, &st.Features},
		{`SELECT COUNT(*) FROM feature`, &st.Values},
	}
	for _, q := range queries {
		if err := db.QueryRowContext(ctx, q.sql).Scan(q.dst); err != nil {
			return nil, fmt.Errorf("failed to count rows: %w", err)
		}
	}
	return st, nil
}

// Value returns the value of a feature on an output node.
func Value(ctx context.Context, db *sql.DB, name string, node int) (graph.Value, error) {
	var (
		s  string
		iv sql.NullInt64
	)
	err := db.QueryRowContext(ctx,
		`SELECT str_value, int_value FROM feature WHERE name = ? AND node = ?`, name, node,
	).Scan(&s, &iv)
	if err == sql.ErrNoRows {
		return graph.Value{}, errors.NewNotFound("feature value", fmt.Sprintf("%s@%d", name, node))
	}
	if err != nil {
		return graph.Value{}, fmt.Errorf("failed to read %s of node %d: %w", name, node, err)
	}
	if iv.Valid {
		return graph.Int(int(iv.Int64)), nil
	}
	return graph.Str(s), nil
}
