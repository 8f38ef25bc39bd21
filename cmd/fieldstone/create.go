// Create command for the fieldstone CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fail(exitSysError, "create", err)
		}
		defer backend.Detach()

		node, err := backend.CreateTable(args[0])
		if err != nil {
			fail(exitUserError, "create table", err)
		}

		if flagJSON {
			printJSON(node)
			return nil
		}
		fmt.Printf("Created table: %s (%s)\n", node.Name, types.ShortID(node.ID))
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a table, document or folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fail(exitSysError, "rename", err)
		}
		defer backend.Detach()

		node, err := backend.Tree().GetNode(args[0])
		if err != nil {
			code := exitSysError
			if isNotFound(err) {
				code = exitUserError
			}
			fail(code, "rename", err)
		}
		if err := backend.Tree().UpdateName(node.ID, args[1]); err != nil {
			fail(exitUserError, "rename", err)
		}

		fmt.Printf("Renamed %s to %q\n", types.ShortID(node.ID), args[1])
		return nil
	},
}

var pinCmd = &cobra.Command{
	Use:   "pin <id>",
	Short: "Pin or unpin a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fail(exitSysError, "pin", err)
		}
		defer backend.Detach()

		node, err := backend.Tree().GetNode(args[0])
		if err != nil {
			code := exitSysError
			if isNotFound(err) {
				code = exitUserError
			}
			fail(code, "pin", err)
		}
		if err := backend.Tree().Pin(node.ID, !node.IsPinned); err != nil {
			fail(exitUserError, "pin", err)
		}

		state := "Pinned"
		if node.IsPinned {
			state = "Unpinned"
		}
		fmt.Printf("%s %s\n", state, types.ShortID(node.ID))
		return nil
	},
}

var moveCmd = &cobra.Command{
	Use:   "move <id> <table-id>",
	Short: "Move a node into a table as a row",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fail(exitSysError, "move", err)
		}
		defer backend.Detach()

		node, err := backend.Tree().GetNode(args[0])
		if err != nil {
			code := exitSysError
			if isNotFound(err) {
				code = exitUserError
			}
			fail(code, "move", err)
		}
		target, err := backend.Tree().GetNode(args[1])
		if err != nil {
			code := exitSysError
			if isNotFound(err) {
				code = exitUserError
			}
			fail(code, "move", err)
		}
		if err := backend.Tree().MoveIntoTable(node.ID, target.ID, node.ParentID); err != nil {
			fail(exitUserError, "move", err)
		}

		fmt.Printf("Moved %s into %s\n", types.ShortID(node.ID), types.ShortID(target.ID))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a node (tables are purged, others soft-deleted)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fail(exitSysError, "delete", err)
		}
		defer backend.Detach()

		node, err := backend.Tree().GetNode(args[0])
		if err != nil {
			code := exitSysError
			if isNotFound(err) {
				code = exitUserError
			}
			fail(code, "delete", err)
		}

		if node.Type == types.NodeTypeTable {
			if err := backend.DeleteTable(node.ID); err != nil {
				fail(exitUserError, "delete table", err)
			}
		} else if err := backend.Tree().Delete(node.ID); err != nil {
			fail(exitUserError, "delete", err)
		}

		fmt.Printf("Deleted %s\n", types.ShortID(node.ID))
		return nil
	},
}

var listWithSubNodes bool

var listCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List nodes, optionally filtered by name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fail(exitSysError, "list", err)
		}
		defer backend.Detach()

		filter := types.NodeListFilter{WithSubNodes: listWithSubNodes}
		if len(args) == 1 {
			filter.Query = args[0]
		}
		nodes, err := backend.Tree().List(filter)
		if err != nil {
			fail(exitSysError, "list", err)
		}

		if flagJSON {
			printJSON(nodes)
			return nil
		}
		for _, n := range nodes {
			pin := " "
			if n.IsPinned {
				pin = "*"
			}
			fmt.Fprintf(os.Stdout, "%s %-8s %-8s %s\n", pin, types.ShortID(n.ID), n.Type, n.Name)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listWithSubNodes, "all", false, "include nested nodes in name matches")
}
