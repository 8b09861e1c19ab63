package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var positionCmd = &cobra.Command{
	Use:   "position <component-id>",
	Short: "Print how many archival objects precede a component",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid component id %q", args[0])
		}

		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		n, err := e.syncer.ObjectsBefore(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree <map-id>",
	Short: "Print the mirrored component tree of a map as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid map id %q", args[0])
		}

		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if outline, _ := cmd.Flags().GetBool("outline"); outline {
			entries, err := e.syncer.Outline(ctx, id)
			if err != nil {
				return err
			}
			for _, en := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s%d\t%s\t%s\n",
					strings.Repeat("  ", en.Depth), en.Component.TreeIndex, en.Component.Level, en.Component.Title)
			}
			return nil
		}

		forest, err := e.syncer.Tree(ctx, id)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(forest)
	},
}

func init() {
	treeCmd.Flags().Bool("outline", false, "print an indented outline instead of JSON")
	rootCmd.AddCommand(positionCmd)
	rootCmd.AddCommand(treeCmd)
}
