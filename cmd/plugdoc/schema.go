package main

import (
	"strings"

	"github.com/jingkaihe/plugdoc/pkg/schema"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:       "schema <" + strings.Join(schema.Names(), "|") + ">",
	Short:     "Print the JSON schema of a document frontmatter or of a plan",
	Args:      cobra.ExactArgs(1),
	ValidArgs: schema.Names(),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := schema.For(args[0])
		if err != nil {
			fail(ctx, err, "unknown schema")
		}
		printJSON(ctx, s)
	},
}
