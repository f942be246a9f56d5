package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/deltalog/deltalog/compile"
)

func init() {
	relationsCommand := &cobra.Command{
		Use:   "relations <unit.json>",
		Short: "Translate a unit and list the resulting relation schema table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelations(args[0])
		},
	}
	RootCommand.AddCommand(relationsCommand)
}

func runRelations(path string) error {
	prog, conf, err := loadUnit(path)
	if err != nil {
		return err
	}

	compiled, err := compile.New().
		WithProgram(prog).
		WithConfig(conf).
		WithLogger(newLogger()).
		Compile(context.Background())
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Arity", "Attributes", "Types", "Representation"})
	table.SetAutoWrapText(false)

	for _, name := range compiled.RelationNames() {
		rel := compiled.Relations[name]
		table.Append([]string{
			rel.Name,
			fmt.Sprintf("%d", rel.Arity),
			strings.Join(rel.Attributes, ","),
			strings.Join(rel.Types, ","),
			rel.Representation,
		})
	}

	table.Render()
	return nil
}
