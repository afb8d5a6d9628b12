// Command score-table prints the single-unit cost of every action type at
// occurrence indexes 0 through 5 for a rule set.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/MJE43/czn-savedata-calc/internal/score"
	"github.com/MJE43/czn-savedata-calc/internal/scripting"
)

const maxIndex = 5

type tableRow struct {
	label string
	row   score.ActionRow
}

func main() {
	var ruleSet, scriptPath string
	var list bool
	flag.StringVar(&ruleSet, "rules", score.DefaultRuleSetName, "rule set name")
	flag.StringVar(&scriptPath, "script", "", "JavaScript file defining pointsForRow(row, index); overrides -rules")
	flag.BoolVar(&list, "list", false, "list registered rule sets")
	flag.Parse()

	if list {
		for _, spec := range score.List() {
			fmt.Printf("  %-10s %s\n", spec.Name, spec.Description)
		}
		return
	}

	rs, err := loadRules(ruleSet, scriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := writeTable(os.Stdout, rs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadRules(name, scriptPath string) (score.RuleSet, error) {
	if scriptPath != "" {
		src, err := os.ReadFile(scriptPath)
		if err != nil {
			return nil, err
		}
		rs, err := scripting.Compile(string(src))
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", scriptPath, err)
		}
		return rs, nil
	}
	rs, ok := score.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown rule set %q", name)
	}
	return rs, nil
}

func tableRows() []tableRow {
	var out []tableRow
	for _, t := range score.ActionTypes {
		out = append(out, tableRow{label: t.Label(), row: score.ActionRow{Type: t, Count: 1}})
		switch t {
		case score.RegularEpiphany:
			out = append(out, tableRow{
				label: t.Label() + " (starting)",
				row:   score.ActionRow{Type: t, Subtype: "starting", Count: 1},
			})
		case score.CardRemoval:
			out = append(out, tableRow{
				label: t.Label() + " (character card)",
				row:   score.ActionRow{Type: t, Count: 1, IsCharacterCard: true},
			})
		}
	}
	return out
}

func writeTable(w io.Writer, rs score.RuleSet) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	header := []string{"action"}
	for i := 0; i <= maxIndex; i++ {
		header = append(header, fmt.Sprintf("#%d", i))
	}
	fmt.Fprintf(tw, "rule set: %s\t\n", rs.Name())
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	for _, tr := range tableRows() {
		cells := []string{tr.label}
		for i := 0; i <= maxIndex; i++ {
			cells = append(cells, fmt.Sprint(rs.PointsForRow(tr.row, i)))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}
