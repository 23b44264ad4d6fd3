// Package debugviz renders an e-graph as a Mermaid graph for debugging,
// grounded on the teacher's own Mermaid-based evaluator dumps.
package debugviz

import (
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"

	"github.com/tensorgraph/esat/internal/egraph"
	"github.com/tensorgraph/esat/internal/term"
)

// Dump renders g as a Mermaid flowchart: one subgraph per e-class
// containing one node per e-node, with edges from each e-node to the
// e-class of each of its children. The root class is outlined with a
// heavier stroke.
func Dump(g *egraph.Graph) string {
	var b strings.Builder
	b.WriteString("graph TD\n")
	b.WriteString("    classDef root stroke-width:4\n")
	b.WriteString("    classDef blacklisted fill:#e01010,stroke:#000000\n")

	classes := g.Classes()
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	for _, c := range classes {
		fmt.Fprintf(&b, "    subgraph class%d[\"class %d\"]\n", c, c)
		for i, n := range g.Nodes(c) {
			fmt.Fprintf(&b, "        n%d_%d[\"%s\"]\n", c, i, nodeLabel(n))
		}
		b.WriteString("    end\n")
		if g.IsBlacklisted(c) {
			fmt.Fprintf(&b, "    class class%d blacklisted\n", c)
		}
		if c == g.Root() {
			fmt.Fprintf(&b, "    class class%d root\n", c)
		}
	}

	for _, c := range classes {
		for i, n := range g.Nodes(c) {
			for _, ch := range n.Children {
				fmt.Fprintf(&b, "    n%d_%d --> class%d\n", c, i, g.Find(ch))
			}
		}
	}
	return b.String()
}

// nodeLabel renders n for a Mermaid node id, avoiding the double quotes
// Node.String emits around its Imm.Name (which would otherwise close
// the Mermaid label early).
func nodeLabel(n term.Node) string {
	label := n.Op.String()
	if n.Imm.Name != "" {
		label += " " + n.Imm.Name
	}
	if n.Imm.IntVal != 0 {
		label += fmt.Sprintf(" %d", n.Imm.IntVal)
	}
	return label
}

var pageTemplate = template.Must(template.New("").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>{{.Title}}</title>
	<script src="https://cdn.jsdelivr.net/npm/mermaid/dist/mermaid.min.js"></script>
	<script>mermaid.initialize({startOnLoad:true});</script>
</head>
<body>
	<div class="mermaid">{{.Graph}}</div>
</body>
</html>
`))

// WritePage writes a self-contained HTML page embedding graph (as
// produced by Dump) as a Mermaid diagram.
func WritePage(w io.Writer, title, graph string) error {
	return pageTemplate.Execute(w, struct{ Title, Graph string }{title, graph})
}
