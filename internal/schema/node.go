// Package schema declares the config graph: one node per exported table,
// linked by the dependency and derivation relationships that determine
// traversal order. The graph is built once per export, validated once, and
// never mutated during traversal.
package schema

import (
	"context"
	"fmt"

	"github.com/chatforge/realmsync/internal/domain"
)

// RowSource is the minimal read capability the exporter needs from the
// relational store. The concrete implementation lives in internal/store.
type RowSource interface {
	// FetchAll returns every row of the table.
	FetchAll(ctx context.Context, table string) ([]domain.Record, error)
	// FetchByFK returns rows whose fkField is in ids, further restricted
	// by the literal filter args (ANDed equality).
	FetchByFK(ctx context.Context, table, fkField string, ids []int64, filter map[string]any) ([]domain.Record, error)
	// FetchByIDs returns rows whose primary key is in ids.
	FetchByIDs(ctx context.Context, table string, ids []int64) ([]domain.Record, error)
}

// Context carries the per-run export parameters through the traversal.
type Context struct {
	RealmID int64
	Realm   domain.Record

	// ExportableUserIDs restricts a partial/consented export; nil means
	// a full export. Users outside the set become mirror dummies.
	ExportableUserIDs map[int64]bool

	// ConsentMessageID, when non-zero, selects messages by consent
	// reactions in addition to the exportable-user rule.
	ConsentMessageID int64

	Source RowSource
}

// IsPartial reports whether this run is a restricted (consent) export.
func (c *Context) IsPartial() bool { return c.ExportableUserIDs != nil }

// CustomFetcher populates one or more tables that cannot be expressed as a
// declarative rule. Implementations are distinct named types, constructed
// by the exporter with whatever store access they need.
type CustomFetcher interface {
	FetchCustom(ctx context.Context, resp domain.TableData, ec *Context) error
}

// PostProcessor runs after a node's table is populated, for cross-table
// sanity checks.
type PostProcessor func(ctx context.Context, resp domain.TableData, ec *Context) error

// Node describes one table's extraction strategy. Exactly one strategy
// must be active: seeded, custom fetch, concat-and-destroy, use-all,
// parent filter, or id-source. Validate enforces this.
type Node struct {
	// Table is the output table name. Empty for multi-table custom
	// fetches, which declare CustomTables instead.
	Table        string
	CustomTables []string

	// DBTable is the underlying relation when it differs from Table,
	// as with the temporary recipient tables (all fetched from
	// zerver_recipient). Empty means Table.
	DBTable string

	// NormalParent means this table's rows are filtered by the parent's
	// already-fetched row IDs through the ParentFK column.
	NormalParent *Node
	ParentFK     string

	// ParentIDTables overrides which response tables supply the parent
	// IDs for a parent-filter fetch. Defaults to the parent's Table.
	// Needed when the parent is a custom fetch producing several user
	// tables whose rows all count (live users plus mirror dummies).
	ParentIDTables []string

	// VirtualParent is an ordering-only dependency: the parent must be
	// fetched first, but no automatic ID filter applies.
	VirtualParent *Node

	// IDSourceTable/IDSourceField name where to pull primary-key values
	// from for an ID-driven fetch. Requires VirtualParent, and the
	// source table must be the virtual parent's table.
	IDSourceTable string
	IDSourceField string

	// SourceFilter, if set, drops source rows before their IDs are
	// collected for an IDSource fetch.
	SourceFilter func(domain.Record) bool

	CustomFetch      CustomFetcher
	ConcatAndDestroy []string
	FilterArgs       map[string]any
	Exclude          []string
	UseAll           bool
	IsSeeded         bool

	PostProcess PostProcessor

	// Children in registration order. Later children may depend on
	// earlier siblings' output, so order is significant.
	Children []*Node
}

// child links n under parent, preserving registration order, and returns n.
func child(parent *Node, n *Node) *Node {
	parent.Children = append(parent.Children, n)
	return n
}

// virtualChild links n under parent as an ordering-only dependency.
func virtualChild(parent *Node, n *Node) *Node {
	n.VirtualParent = parent
	parent.Children = append(parent.Children, n)
	return n
}

// Strategy identifies which extraction rule a node uses.
type Strategy int

const (
	StrategySeeded Strategy = iota
	StrategyCustom
	StrategyConcat
	StrategyUseAll
	StrategyParentFilter
	StrategyIDSource
)

var strategyNames = map[Strategy]string{
	StrategySeeded:       "seeded",
	StrategyCustom:       "custom_fetch",
	StrategyConcat:       "concat_and_destroy",
	StrategyUseAll:       "use_all",
	StrategyParentFilter: "parent_filter",
	StrategyIDSource:     "id_source",
}

// ValidationError reports a misconstructed config graph. These are
// programming errors: they abort before any I/O happens.
type ValidationError struct {
	Table  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config graph: table %q: %s", e.Table, e.Reason)
}

// Strategy returns the node's single active extraction strategy, or an
// error if zero or multiple strategies are declared.
func (n *Node) Strategy() (Strategy, error) {
	var active []Strategy
	if n.IsSeeded {
		active = append(active, StrategySeeded)
	}
	if n.CustomFetch != nil {
		active = append(active, StrategyCustom)
	}
	if len(n.ConcatAndDestroy) > 0 {
		active = append(active, StrategyConcat)
	}
	if n.UseAll {
		active = append(active, StrategyUseAll)
	}
	if n.NormalParent != nil {
		active = append(active, StrategyParentFilter)
	}
	if n.IDSourceTable != "" {
		active = append(active, StrategyIDSource)
	}

	switch len(active) {
	case 0:
		return 0, &ValidationError{Table: n.Table, Reason: "no extraction strategy declared"}
	case 1:
		return active[0], nil
	default:
		return 0, &ValidationError{
			Table: n.Table,
			Reason: fmt.Sprintf("conflicting strategies %s and %s",
				strategyNames[active[0]], strategyNames[active[1]]),
		}
	}
}

// Validate walks the tree and checks every construction-time invariant:
// exactly one strategy per node, parent-filter nodes carry a ParentFK,
// id-source nodes have a virtual parent whose table matches the source
// table, and custom nodes declare their output tables.
func Validate(root *Node) error {
	return walkValidate(root)
}

func walkValidate(n *Node) error {
	s, err := n.Strategy()
	if err != nil {
		return err
	}

	switch s {
	case StrategyParentFilter:
		if n.ParentFK == "" {
			return &ValidationError{Table: n.Table, Reason: "parent filter requires ParentFK"}
		}
	case StrategyIDSource:
		if n.VirtualParent == nil {
			return &ValidationError{Table: n.Table, Reason: "id_source requires a virtual parent"}
		}
		if n.IDSourceTable != n.VirtualParent.Table {
			return &ValidationError{
				Table: n.Table,
				Reason: fmt.Sprintf("id_source table %q does not match virtual parent table %q",
					n.IDSourceTable, n.VirtualParent.Table),
			}
		}
		if n.IDSourceField == "" {
			return &ValidationError{Table: n.Table, Reason: "id_source requires a source field"}
		}
	case StrategyCustom:
		if n.Table == "" && len(n.CustomTables) == 0 {
			return &ValidationError{Table: "(custom)", Reason: "custom fetch must declare output tables"}
		}
	}

	for _, c := range n.Children {
		if err := walkValidate(c); err != nil {
			return err
		}
	}
	return nil
}

// SourceTable returns the relation rows are fetched from.
func (n *Node) SourceTable() string {
	if n.DBTable != "" {
		return n.DBTable
	}
	return n.Table
}

// ParentTables returns the response tables supplying parent IDs for a
// parent-filter fetch.
func (n *Node) ParentTables() []string {
	if len(n.ParentIDTables) > 0 {
		return n.ParentIDTables
	}
	return []string{n.NormalParent.Table}
}

// Tables returns the node's declared output table names.
func (n *Node) Tables() []string {
	if len(n.CustomTables) > 0 {
		return n.CustomTables
	}
	if n.Table != "" {
		return []string{n.Table}
	}
	return nil
}
