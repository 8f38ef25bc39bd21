// Row commands for the fieldstone CLI.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fieldstone/internal/sqlite"
	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

var rowCmd = &cobra.Command{
	Use:   "row",
	Short: "Row operations on a table",
}

func init() {
	rowCmd.AddCommand(rowAddCmd)
	rowCmd.AddCommand(rowGetCmd)
	rowCmd.AddCommand(rowListCmd)
	rowCmd.AddCommand(rowSetCmd)
	rowCmd.AddCommand(rowDeleteCmd)
}

// tableManager resolves a table id or short id and returns its store.
func tableManager(backend *sqlite.Backend, idOrShortID string) (types.TableStore, error) {
	node, err := backend.Tree().GetNode(idOrShortID)
	if err != nil {
		return nil, err
	}
	return backend.Manager(node.ID)
}

var rowAddCmd = &cobra.Command{
	Use:   "add <table-id> [json]",
	Short: "Add a row, optionally seeding cell values from a JSON object",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fail(exitSysError, "row add", err)
		}
		defer backend.Detach()

		table, err := tableManager(backend, args[0])
		if err != nil {
			code := exitSysError
			if isNotFound(err) {
				code = exitUserError
			}
			fail(code, "row add", err)
		}

		initial := map[string]any{}
		if len(args) == 2 {
			if err := json.Unmarshal([]byte(args[1]), &initial); err != nil {
				fail(exitUserError, "row add: parse values", err)
			}
		}

		rowID, err := table.AddRow(initial)
		if err != nil {
			fail(exitUserError, "row add", err)
		}
		backend.Flush()

		fmt.Printf("Added row: %s\n", types.ShortID(rowID))
		return nil
	},
}

var rowGetCmd = &cobra.Command{
	Use:   "get <table-id> <row-id>",
	Short: "Print a row's decoded cell values",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fail(exitSysError, "row get", err)
		}
		defer backend.Detach()

		table, err := tableManager(backend, args[0])
		if err != nil {
			code := exitSysError
			if isNotFound(err) {
				code = exitUserError
			}
			fail(code, "row get", err)
		}

		row, err := table.GetRow(args[1])
		if err != nil {
			code := exitSysError
			if isNotFound(err) {
				code = exitUserError
			}
			fail(code, "row get", err)
		}

		printJSON(row)
		return nil
	},
}

var rowListCmd = &cobra.Command{
	Use:   "list <table-id>",
	Short: "List all rows of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fail(exitSysError, "row list", err)
		}
		defer backend.Detach()

		table, err := tableManager(backend, args[0])
		if err != nil {
			code := exitSysError
			if isNotFound(err) {
				code = exitUserError
			}
			fail(code, "row list", err)
		}

		rows, err := table.Rows()
		if err != nil {
			fail(exitSysError, "row list", err)
		}

		if flagJSON {
			printJSON(rows)
			return nil
		}
		for _, r := range rows {
			id, _ := r[types.ColumnRowID].(string)
			title, _ := r[types.ColumnTitle].(string)
			fmt.Printf("%-8s %s\n", types.ShortID(id), title)
		}
		return nil
	},
}

var rowSetCmd = &cobra.Command{
	Use:   "set <table-id> <row-id> <column> <value>",
	Short: "Set one cell value",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fail(exitSysError, "row set", err)
		}
		defer backend.Detach()

		table, err := tableManager(backend, args[0])
		if err != nil {
			code := exitSysError
			if isNotFound(err) {
				code = exitUserError
			}
			fail(code, "row set", err)
		}

		// Accept JSON literals so numbers, booleans and arrays round-trip;
		// fall back to the raw string.
		var value any
		if err := json.Unmarshal([]byte(args[3]), &value); err != nil {
			value = args[3]
		}

		if err := table.SetCell(args[1], args[2], value); err != nil {
			fail(exitUserError, "row set", err)
		}
		backend.Flush()

		fmt.Printf("Set %s.%s\n", types.ShortID(args[1]), args[2])
		return nil
	},
}

var rowDeleteCmd = &cobra.Command{
	Use:   "delete <table-id> <row-id>",
	Short: "Delete a row and its link relations",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fail(exitSysError, "row delete", err)
		}
		defer backend.Detach()

		table, err := tableManager(backend, args[0])
		if err != nil {
			code := exitSysError
			if isNotFound(err) {
				code = exitUserError
			}
			fail(code, "row delete", err)
		}

		if err := table.DeleteRow(args[1]); err != nil {
			fail(exitUserError, "row delete", err)
		}
		backend.Flush()

		fmt.Printf("Deleted row %s\n", types.ShortID(args[1]))
		return nil
	},
}
