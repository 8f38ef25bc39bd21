package sqlite

import (
	"fmt"
	"strings"
)

// Change-data-capture triggers. Each physical data table (and each link join
// table) carries three row-level triggers that serialize the affected row
// with json_object and hand it to the data-event UDFs. The storage engine
// has no native change feed; this is it.
//
// Trigger bodies enumerate the table's columns, so structural changes
// (AddColumn, DeleteField) must recreate the triggers.

func triggerName(rawTable, event string) string {
	return rawTable + "_" + event + "_trigger"
}

// dropTriggerDDL removes the three CDC triggers of a table.
func dropTriggerDDL(rawTable string) []string {
	return []string{
		fmt.Sprintf(`DROP TRIGGER IF EXISTS "%s";`, triggerName(rawTable, "insert")),
		fmt.Sprintf(`DROP TRIGGER IF EXISTS "%s";`, triggerName(rawTable, "update")),
		fmt.Sprintf(`DROP TRIGGER IF EXISTS "%s";`, triggerName(rawTable, "delete")),
	}
}

// createTriggerDDL builds the three CDC triggers for a table with the given
// columns. The space id is baked into each trigger body so the process-global
// UDFs can route the signal back to the owning backend.
func createTriggerDDL(spaceID, rawTable string, columns []string) []string {
	newSnap := rowJSONExpr("new", columns)
	oldSnap := rowJSONExpr("old", columns)

	insert := fmt.Sprintf(`CREATE TRIGGER "%s" AFTER INSERT ON "%s"
BEGIN
  SELECT %s('%s', '%s', %s);
END;`, triggerName(rawTable, "insert"), rawTable, udfDataEventInsert, spaceID, rawTable, newSnap)

	update := fmt.Sprintf(`CREATE TRIGGER "%s" AFTER UPDATE ON "%s"
BEGIN
  SELECT %s('%s', '%s', %s, %s);
END;`, triggerName(rawTable, "update"), rawTable, udfDataEventUpdate, spaceID, rawTable, newSnap, oldSnap)

	del := fmt.Sprintf(`CREATE TRIGGER "%s" AFTER DELETE ON "%s"
BEGIN
  SELECT %s('%s', '%s', %s);
END;`, triggerName(rawTable, "delete"), rawTable, udfDataEventDelete, spaceID, rawTable, oldSnap)

	return []string{insert, update, del}
}

// rowJSONExpr renders a json_object(...) expression serializing one row
// reference ("new" or "old") over the given columns.
func rowJSONExpr(ref string, columns []string) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, fmt.Sprintf(`'%s', %s."%s"`, col, ref, col))
	}
	return "json_object(" + strings.Join(parts, ", ") + ")"
}
