// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pdiddy/template-converter/pkg/types"
)

// Node is one level of the display tree built from flattened fields.
type Node struct {
	Name     string
	Field    *types.SchemaField
	Children []*Node
}

// BuildTree arranges fields into a hierarchy keyed by parent path.
func BuildTree(fields map[string]types.SchemaField) *Node {
	root := &Node{Name: "root"}
	nodes := map[string]*Node{"": root}

	for _, p := range SortedPaths(fields) {
		f := fields[p]
		n := &Node{Name: leafLabel(f), Field: &f}
		nodes[p] = n
	}
	for _, p := range SortedPaths(fields) {
		parent := nodes[ParentPath(p)]
		if parent == nil {
			// Array element containers ("items[0]") are not fields; attach
			// to the array itself.
			parent = nodes[arrayOwner(ParentPath(p))]
		}
		if parent == nil {
			parent = root
		}
		parent.Children = append(parent.Children, nodes[p])
	}
	sortTree(root)
	return root
}

func leafLabel(f types.SchemaField) string {
	if f.IsArray {
		return f.Name + "[]"
	}
	return f.Name
}

func arrayOwner(p string) string {
	if i := strings.LastIndex(p, "["); i >= 0 {
		return p[:i]
	}
	return p
}

func sortTree(n *Node) {
	sort.Slice(n.Children, func(i, j int) bool { return n.Children[i].Name < n.Children[j].Name })
	for _, c := range n.Children {
		sortTree(c)
	}
}

// Print writes the tree with two-space indentation per level.
func (n *Node) Print(w io.Writer) {
	for _, c := range n.Children {
		c.print(w, 0)
	}
}

func (n *Node) print(w io.Writer, level int) {
	indent := strings.Repeat("  ", level)
	if n.Field != nil && n.Field.Type != types.TypeObject && n.Field.Type != types.TypeArray {
		fmt.Fprintf(w, "%s%s (%s): %v\n", indent, n.Name, n.Field.Type, n.Field.SampleValue)
	} else if n.Field != nil && n.Field.IsArray {
		fmt.Fprintf(w, "%s%s (%d items)\n", indent, n.Name, n.Field.ArrayCount)
	} else {
		fmt.Fprintf(w, "%s%s\n", indent, n.Name)
	}
	for _, c := range n.Children {
		c.print(w, level+1)
	}
}
