package sqlite

// Formula expressions are SQL scalar expressions over sibling columns of
// the same table (e.g. `num * 2`, `fs_twice(score)`). The dependency set of
// a formula is the set of known column names appearing as identifiers in
// its expression; a change to any of them dirties the formula's cell.

// extractColumnRefs returns the members of columns referenced by expr, in
// the order they are declared. Identifiers are compared whole: a column
// named num does not match numerator.
func extractColumnRefs(expr string, columns []string) []string {
	idents := make(map[string]bool)
	for _, tok := range identifiers(expr) {
		idents[tok] = true
	}
	var refs []string
	for _, col := range columns {
		if idents[col] {
			refs = append(refs, col)
		}
	}
	return refs
}

// identifiers splits an expression into identifier-shaped tokens. Both bare
// and double-quoted identifiers are recognized; string literals in single
// quotes are skipped so 'a label' never aliases a column.
func identifiers(expr string) []string {
	var out []string
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == '\'':
			// Skip the string literal, honoring '' escapes.
			i++
			for i < len(expr) {
				if expr[i] == '\'' {
					if i+1 < len(expr) && expr[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
		case c == '"':
			j := i + 1
			for j < len(expr) && expr[j] != '"' {
				j++
			}
			if j > i+1 {
				out = append(out, expr[i+1:j])
			}
			i = j + 1
		case isIdentStart(c):
			j := i + 1
			for j < len(expr) && isIdentPart(expr[j]) {
				j++
			}
			out = append(out, expr[i:j])
			i = j
		default:
			i++
		}
	}
	return out
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
