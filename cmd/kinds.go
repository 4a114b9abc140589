package cmd

import (
	"fmt"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/bugscan/internal/analysis/detectors"
)

type kindEntry struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	BaseRank int    `json:"base_rank"`
	Rule     string `json:"rule"`
}

func newKindsCmd() *cobra.Command {
	var asJSON bool

	kindsCmd := &cobra.Command{
		Use:   "kinds",
		Short: "Lists the finding kinds of the built-in rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := listKinds()
			out := cmd.OutOrStdout()

			if asJSON {
				enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tCATEGORY\tBASE RANK\tRULE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.Name, e.Category, e.BaseRank, e.Rule)
			}
			return tw.Flush()
		},
	}
	kindsCmd.Flags().BoolVar(&asJSON, "json", false, "Print the kinds as JSON.")
	return kindsCmd
}

// listKinds returns every declared kind in declaration order, with the rule
// that reports it.
func listKinds() []kindEntry {
	reg := detectors.DefaultRegistry()

	ruleOf := make(map[string]string)
	for _, b := range reg.Bindings() {
		for _, k := range b.Kinds {
			ruleOf[k.Name] = b.Rule.ID()
		}
	}

	kinds := reg.Kinds()
	entries := make([]kindEntry, len(kinds))
	for i, k := range kinds {
		entries[i] = kindEntry{Name: k.Name, Category: k.Category, BaseRank: k.BaseRank, Rule: ruleOf[k.Name]}
	}
	return entries
}
