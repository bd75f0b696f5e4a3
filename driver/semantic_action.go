package driver

import (
	"fmt"
	"io"
)

// Node is the syntax tree the default semantic actions build: one leaf per
// shifted token, one interior node per reduction.
type Node struct {
	KindName string
	Text     string
	Row      int
	Col      int
	Children []*Node
}

// PrintTree writes an indented rendering of the tree rooted at node.
func PrintTree(w io.Writer, node *Node) {
	if node == nil {
		return
	}
	writeNode(w, node, "", "")
}

func writeNode(w io.Writer, node *Node, marker string, indent string) {
	if node.Text != "" {
		fmt.Fprintf(w, "%v%v %#v\n", marker, node.KindName, node.Text)
	} else {
		fmt.Fprintf(w, "%v%v\n", marker, node.KindName)
	}

	last := len(node.Children) - 1
	for i, child := range node.Children {
		if i < last {
			writeNode(w, child, indent+"├─ ", indent+"│  ")
		} else {
			writeNode(w, child, indent+"└─ ", indent+"   ")
		}
	}
}
