package cfg

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/reschivon/autoforge/pkg/pyast"
)

// WriteDOT renders graphs as one Graphviz digraph with a cluster per
// function.
func WriteDOT(w io.Writer, graphs []*Graph) error {
	out := strings.Builder{}
	out.WriteString("digraph autoforge {\n")
	out.WriteString("  node [shape=\"box\" fontname=\"monospace\"];\n")
	for i, g := range graphs {
		out.WriteString(g.AsDOT("g"+strconv.Itoa(i), 1))
	}
	out.WriteString("}\n")

	if _, err := io.WriteString(w, out.String()); err != nil {
		return fmt.Errorf("writing dot: %w", err)
	}
	return nil
}

// AsDOT renders g as a DOT subgraph. Node ids are prefixed with prefix.
func (g *Graph) AsDOT(prefix string, indentLevel int) string {
	out := strings.Builder{}
	indent := strings.Repeat("  ", indentLevel)

	out.WriteString(fmt.Sprintf("%ssubgraph cluster_%s {\n", indent, prefix))
	out.WriteString(fmt.Sprintf("%s  label=%s;\n", indent, strconv.Quote(fmt.Sprintf("%s (line %d)", g.Name(), g.Func.Position()))))
	for _, c := range g.chunks {
		out.WriteString(fmt.Sprintf("%s  %s_%d [label=\"%s\"];\n", indent, prefix, c.Order, chunkLabel(c)))
	}
	for _, c := range g.chunks {
		for i, child := range g.Children(c) {
			attrs := ""
			switch g.edgeType(c, child, i) {
			case EdgeTypeTrue:
				attrs = " [color=\"darkgreen\"]"
			case EdgeTypeFalse:
				attrs = " [color=\"red\"]"
			case EdgeTypeBackEdge:
				attrs = " [style=\"dashed\"]"
			}
			out.WriteString(fmt.Sprintf("%s  %s_%d -> %s_%d%s;\n", indent, prefix, c.Order, prefix, child.Order, attrs))
		}
	}
	out.WriteString(indent + "}\n")
	return out.String()
}

func chunkLabel(c *Chunk) string {
	lines := []string{fmt.Sprintf("#%d %s", c.Order, c.Kind)}
	for _, s := range c.Statements {
		if s.IsPlaceholder() {
			lines = append(lines, "<placeholder>")
			continue
		}
		lines = append(lines, fmt.Sprintf("%d: %s", s.Node.Position(), dotEscaper.Replace(pyast.FirstLine(s.Node))))
	}
	// \l left-justifies each line.
	return strings.Join(lines, `\l`) + `\l`
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
