package merkle

import "testing"

import "github.com/stretchr/testify/require"

func TestContentAddressStability(t *testing.T) {
	g1, g2 := New(), New()
	id1 := g1.AddNode("same data", "")
	id2 := g2.AddNode("same data", "")
	require.Equal(t, id1, id2)
}

func TestAddNodeMissingParentNotRoot(t *testing.T) {
	d := New()
	id := d.AddNode("orphan", H("doesnotexist"))
	require.NotNil(t, d.GetNode(id))
	require.False(t, containsH(d.RootIds, id))
}

func TestAddNodeEdges(t *testing.T) {
	d := New()
	root := d.AddNode("root", "")
	child := d.AddNode("child", root)

	rootNode := d.GetNode(root)
	childNode := d.GetNode(child)
	require.Contains(t, rootNode.Children, child)
	require.Contains(t, childNode.Parents, root)
}

func TestSerializeRoundTrip(t *testing.T) {
	d := New()
	root := d.AddNode("root", "")
	d.AddNode("child-a", root)
	d.AddNode("child-b", root)

	data, err := d.Serialize()
	require.NoError(t, err)

	d2, err := Deserialize(data)
	require.NoError(t, err)

	require.Equal(t, d.RootIds, d2.RootIds)
	require.Len(t, d2.Nodes, len(d.Nodes))
	for id, n := range d.Nodes {
		n2, ok := d2.Nodes[id]
		require.True(t, ok)
		require.ElementsMatch(t, n.Parents, n2.Parents)
		require.ElementsMatch(t, n.Children, n2.Children)
	}
}

func TestCompareDiff(t *testing.T) {
	g1 := New()
	g1.AddNode("a", "")
	g1.AddNode("b", "")

	g2 := New()
	g2.AddNode("a", "")
	g2.AddNode("c", "")

	diff := Compare(g1, g2)
	require.ElementsMatch(t, diff.Added, []H{HashString("c")})
	require.ElementsMatch(t, diff.Removed, []H{HashString("b")})
	require.Empty(t, diff.Modified)
}

func TestCompareSameGraphEmpty(t *testing.T) {
	g1 := New()
	g1.AddNode("x", "")
	g2 := New()
	g2.AddNode("x", "")

	diff := Compare(g1, g2)
	require.Empty(t, diff.Added)
	require.Empty(t, diff.Removed)
}
