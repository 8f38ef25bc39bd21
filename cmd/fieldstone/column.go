// Column commands for the fieldstone CLI.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

var columnCmd = &cobra.Command{
	Use:   "column",
	Short: "Column operations on a table",
}

var columnAddProperty string

func init() {
	columnAddCmd.Flags().StringVar(&columnAddProperty, "property", "", "field configuration as JSON")
	columnCmd.AddCommand(columnAddCmd)
	columnCmd.AddCommand(columnListCmd)
	columnCmd.AddCommand(columnDeleteCmd)
	columnCmd.AddCommand(columnConvertCmd)
}

var columnAddCmd = &cobra.Command{
	Use:   "add <table-id> <name> <type>",
	Short: "Add a typed column to a table",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fail(exitSysError, "column add", err)
		}
		defer backend.Detach()

		table, err := tableManager(backend, args[0])
		if err != nil {
			code := exitSysError
			if isNotFound(err) {
				code = exitUserError
			}
			fail(code, "column add", err)
		}

		field := &types.Field{Name: args[1], Type: args[2]}
		if columnAddProperty != "" {
			field.Property = json.RawMessage(columnAddProperty)
		}
		added, err := table.AddColumn(field)
		if err != nil {
			fail(exitUserError, "column add", err)
		}
		backend.Flush()

		if flagJSON {
			printJSON(added)
			return nil
		}
		fmt.Printf("Added column %s (%s) as %s\n", added.Name, added.Type, added.TableColumnName)
		return nil
	},
}

var columnListCmd = &cobra.Command{
	Use:   "list <table-id>",
	Short: "List a table's field definitions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fail(exitSysError, "column list", err)
		}
		defer backend.Detach()

		table, err := tableManager(backend, args[0])
		if err != nil {
			code := exitSysError
			if isNotFound(err) {
				code = exitUserError
			}
			fail(code, "column list", err)
		}

		fields, err := table.Fields()
		if err != nil {
			fail(exitSysError, "column list", err)
		}

		if flagJSON {
			printJSON(fields)
			return nil
		}
		for _, f := range fields {
			fmt.Printf("%-24s %-14s %s\n", f.TableColumnName, f.Type, f.Name)
		}
		return nil
	},
}

var columnDeleteCmd = &cobra.Command{
	Use:   "delete <table-id> <column>",
	Short: "Delete a column and its stored values",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fail(exitSysError, "column delete", err)
		}
		defer backend.Detach()

		table, err := tableManager(backend, args[0])
		if err != nil {
			code := exitSysError
			if isNotFound(err) {
				code = exitUserError
			}
			fail(code, "column delete", err)
		}

		if err := table.DeleteField(args[1]); err != nil {
			fail(exitUserError, "column delete", err)
		}

		fmt.Printf("Deleted column %s\n", args[1])
		return nil
	},
}

var columnConvertCmd = &cobra.Command{
	Use:   "convert <table-id> <column> <type>",
	Short: "Convert a column to a different field type",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fail(exitSysError, "column convert", err)
		}
		defer backend.Detach()

		table, err := tableManager(backend, args[0])
		if err != nil {
			code := exitSysError
			if isNotFound(err) {
				code = exitUserError
			}
			fail(code, "column convert", err)
		}

		if err := table.ConvertFieldType(args[1], args[2]); err != nil {
			fail(exitUserError, "column convert", err)
		}

		fmt.Printf("Converted column %s to %s\n", args[1], args[2])
		return nil
	},
}
