package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"treesync/internal/infrastructure/wiring"
	"treesync/pkg/domain/tree"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4")).
	Padding(0, 1)

var countStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
var rootStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the hierarchy in the interchange file without writing",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := wiring.BuildAppServices(configPath)
		if err != nil {
			return err
		}
		forest, err := services.Store.Load(cmd.Context())
		if err != nil {
			return MapError(err)
		}
		fmt.Print(renderForest(forest))
		return nil
	},
}

// renderForest draws per-level counts and the indented tree.
func renderForest(forest *tree.Forest) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Sync preview") + "\n\n")

	levels := make(map[int]int)
	maxDepth := 0
	for _, n := range forest.Nodes() {
		levels[n.Depth]++
		if n.Depth > maxDepth {
			maxDepth = n.Depth
		}
	}
	fmt.Fprintf(&b, "%d items\n", forest.Len())
	for d := 0; d <= maxDepth; d++ {
		b.WriteString(countStyle.Render(fmt.Sprintf("  level %d: %d", d, levels[d])) + "\n")
	}
	b.WriteString("\n")

	var walk func(n *tree.Node)
	walk = func(n *tree.Node) {
		indent := strings.Repeat("  ", n.Depth)
		label := n.Name
		if n.IsRoot() {
			label = rootStyle.Render(label)
		}
		fmt.Fprintf(&b, "%s%s %s\n", indent, label, countStyle.Render("("+n.ID+")"))
		for _, c := range forest.Children(n.ID) {
			walk(c)
		}
	}
	for _, root := range forest.Roots() {
		walk(root)
	}
	return b.String()
}

func sorted(s []string) []string {
	sort.Strings(s)
	return s
}

func init() {
	RootCmd.AddCommand(previewCmd)
}
