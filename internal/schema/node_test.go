package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/realmsync/internal/domain"
)

type nopFetcher struct{}

func (nopFetcher) FetchCustom(ctx context.Context, resp domain.TableData, ec *Context) error {
	return nil
}

func TestStrategyExactlyOne(t *testing.T) {
	tests := []struct {
		name    string
		node    *Node
		want    Strategy
		wantErr bool
	}{
		{name: "seeded", node: &Node{Table: "t", IsSeeded: true}, want: StrategySeeded},
		{name: "custom", node: &Node{Table: "t", CustomFetch: nopFetcher{}}, want: StrategyCustom},
		{name: "concat", node: &Node{Table: "t", ConcatAndDestroy: []string{"a"}}, want: StrategyConcat},
		{name: "use_all", node: &Node{Table: "t", UseAll: true}, want: StrategyUseAll},
		{name: "parent_filter", node: &Node{Table: "t", NormalParent: &Node{}, ParentFK: "x_id"}, want: StrategyParentFilter},
		{name: "id_source", node: &Node{Table: "t", IDSourceTable: "p", IDSourceField: "id"}, want: StrategyIDSource},
		{name: "none", node: &Node{Table: "t"}, wantErr: true},
		{name: "two", node: &Node{Table: "t", IsSeeded: true, UseAll: true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.node.Strategy()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateRejectsBadNodes(t *testing.T) {
	tests := []struct {
		name string
		root *Node
	}{
		{
			name: "parent filter without fk",
			root: &Node{Table: "t", NormalParent: &Node{Table: "p"}},
		},
		{
			name: "id source without virtual parent",
			root: &Node{Table: "t", IDSourceTable: "p", IDSourceField: "id"},
		},
		{
			name: "id source table mismatch",
			root: func() *Node {
				p := &Node{Table: "p", IsSeeded: true}
				virtualChild(p, &Node{Table: "t", IDSourceTable: "other", IDSourceField: "id"})
				return p
			}(),
		},
		{
			name: "id source without field",
			root: func() *Node {
				p := &Node{Table: "p", IsSeeded: true}
				virtualChild(p, &Node{Table: "t", IDSourceTable: "p"})
				return p
			}(),
		},
		{
			name: "custom without tables",
			root: &Node{CustomFetch: nopFetcher{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.root)
			require.Error(t, err)
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestBuildRealmConfigValidates(t *testing.T) {
	root, err := BuildRealmConfig(Fetchers{
		UserProfiles:     nopFetcher{},
		HuddleRecipients: nopFetcher{},
	})
	require.NoError(t, err)
	require.Equal(t, domain.TableRealm, root.Table)

	// Every realm table must be produced by some node in the graph.
	produced := map[string]bool{}
	var walk func(*Node)
	walk = func(n *Node) {
		for _, t := range n.Tables() {
			produced[t] = true
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)

	for _, table := range domain.RealmTables {
		assert.True(t, produced[table], "table %s not produced by the graph", table)
	}
}

func TestBuildUserConfigValidates(t *testing.T) {
	root, err := BuildUserConfig()
	require.NoError(t, err)
	assert.Equal(t, domain.TableUserProfile, root.Table)
	assert.True(t, root.IsSeeded)
}

func TestSourceTable(t *testing.T) {
	n := &Node{Table: TmpStreamRecipient, DBTable: domain.TableRecipient}
	assert.Equal(t, domain.TableRecipient, n.SourceTable())

	n = &Node{Table: domain.TableStream}
	assert.Equal(t, domain.TableStream, n.SourceTable())
}

func TestParentTables(t *testing.T) {
	parent := &Node{Table: "p"}
	n := &Node{Table: "t", NormalParent: parent}
	assert.Equal(t, []string{"p"}, n.ParentTables())

	n.ParentIDTables = []string{"a", "b"}
	assert.Equal(t, []string{"a", "b"}, n.ParentTables())
}

func TestCanonicalTable(t *testing.T) {
	assert.Equal(t, domain.TableUserProfile, CanonicalTable(domain.TableUserProfileMirrorDummy))
	assert.Equal(t, domain.TableUserProfile, CanonicalTable(domain.TableUserProfileCrossRealm))
	assert.Equal(t, domain.TableRecipient, CanonicalTable(TmpStreamRecipient))
	assert.Equal(t, domain.TableRecipient, CanonicalTable(TmpUserRecipient))
	assert.Equal(t, domain.TableRecipient, CanonicalTable(TmpHuddleRecipient))
	assert.Equal(t, domain.TableMessage, CanonicalTable(domain.TableMessage))
}
