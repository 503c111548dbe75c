// Package export walks the config graph for a realm and serializes the
// result to the on-disk export layout consumed by the importer.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/pkg/logger"
	"github.com/chatforge/realmsync/internal/schema"
	"github.com/chatforge/realmsync/internal/store"
)

// Exporter drives one export run.
type Exporter struct {
	store     *store.Store
	chunkSize int
	shards    int
}

// Options tunes an exporter.
type Options struct {
	MessageChunkSize  int
	UserMessageShards int
}

// New creates an exporter over the store.
func New(st *store.Store, opts Options) *Exporter {
	if opts.MessageChunkSize <= 0 {
		opts.MessageChunkSize = 1000
	}
	if opts.UserMessageShards <= 0 {
		opts.UserMessageShards = 1
	}
	return &Exporter{store: st, chunkSize: opts.MessageChunkSize, shards: opts.UserMessageShards}
}

// ExportFromConfig executes one node's extraction strategy against the
// response, then recurses into its children in registration order. Fatal
// errors abort the entire export: a partial, inconsistent export is worse
// than no export.
func (e *Exporter) ExportFromConfig(ctx context.Context, resp domain.TableData, node *schema.Node, ec *schema.Context) error {
	strategy, err := node.Strategy()
	if err != nil {
		return err
	}

	switch strategy {
	case schema.StrategySeeded:
		resp[node.Table] = []domain.Record{ec.Realm.Clone()}

	case schema.StrategyCustom:
		if err := node.CustomFetch.FetchCustom(ctx, resp, ec); err != nil {
			return fmt.Errorf("custom fetch for %v: %w", node.Tables(), err)
		}
		for _, t := range node.Tables() {
			if _, ok := resp[t]; !ok {
				return fmt.Errorf("custom fetch declared table %q but did not populate it", t)
			}
		}

	case schema.StrategyConcat:
		var merged []domain.Record
		for _, t := range node.ConcatAndDestroy {
			merged = append(merged, resp[t]...)
			delete(resp, t)
		}
		domain.SortByID(merged)
		resp[node.Table] = merged

	case schema.StrategyUseAll:
		rows, err := ec.Source.FetchAll(ctx, node.SourceTable())
		if err != nil {
			return err
		}
		resp[node.Table] = rows

	case schema.StrategyParentFilter:
		var parentIDs []int64
		for _, t := range node.ParentTables() {
			parentIDs = append(parentIDs, domain.IDs(resp[t], "id")...)
		}
		rows, err := ec.Source.FetchByFK(ctx, node.SourceTable(), node.ParentFK, parentIDs, node.FilterArgs)
		if err != nil {
			return err
		}
		resp[node.Table] = rows

	case schema.StrategyIDSource:
		var ids []int64
		for _, r := range resp[node.IDSourceTable] {
			if node.SourceFilter != nil && !node.SourceFilter(r) {
				continue
			}
			ids = append(ids, r.Int(node.IDSourceField))
		}
		rows, err := ec.Source.FetchByIDs(ctx, node.SourceTable(), ids)
		if err != nil {
			return err
		}
		resp[node.Table] = rows
	}

	if strategy != schema.StrategyCustom {
		normalizeTable(node.Table, resp[node.Table], node.Exclude)
	} else {
		for _, t := range node.Tables() {
			normalizeTable(t, resp[t], node.Exclude)
		}
	}

	if node.PostProcess != nil {
		if err := node.PostProcess(ctx, resp, ec); err != nil {
			return err
		}
	}

	for _, c := range node.Children {
		if err := e.ExportFromConfig(ctx, resp, c, ec); err != nil {
			return err
		}
	}
	return nil
}

// normalizeTable applies the persisted-form conventions to freshly fetched
// rows: drop excluded columns, convert registered datetime columns to UTC
// float timestamps, and strip the "_id" suffix from foreign-key columns.
func normalizeTable(table string, records []domain.Record, exclude []string) {
	table = schema.CanonicalTable(table)
	for _, r := range records {
		for _, f := range exclude {
			delete(r, f)
		}
	}
	floatifyDates(table, records)
	for _, fk := range schema.ForeignKeys[table] {
		col := fk + "_id"
		for _, r := range records {
			if v, ok := r[col]; ok {
				delete(r, col)
				r[fk] = v
			}
		}
	}
}

// floatifyDates converts every registered datetime column to a UTC unix
// timestamp with fractional seconds. The float form is the persisted,
// timezone-unambiguous representation.
func floatifyDates(table string, records []domain.Record) {
	fields, ok := schema.DateFields[table]
	if !ok {
		return
	}
	for _, r := range records {
		for _, f := range fields {
			t, ok := r[f].(time.Time)
			if !ok {
				continue
			}
			r[f] = float64(t.UTC().UnixNano()) / float64(time.Second)
		}
	}
}

// warnMissingTables logs (non-fatally) any expected table entirely absent
// from the output. Absence usually signals config-graph drift; some tables
// are legitimately empty or importer-only, so this never aborts.
func warnMissingTables(resp domain.TableData) {
	for _, t := range domain.RealmTables {
		if _, ok := resp[t]; !ok {
			logger.Warn("expected table missing from export", "table", t)
		}
	}
}
