package interp

import "strconv"

// ScanParamOffset splits a parameter reference like "p_foo[3]" into its
// base name and optional element index. It never mutates its input: the
// name is a re-slice of expr. A malformed bracket expression is treated
// as "no index" rather than an error, falling back to scalar access.
func ScanParamOffset(expr string) (name string, index int, hasIndex bool) {
	open := -1
	for i := 0; i < len(expr); i++ {
		if expr[i] == '[' {
			open = i
			break
		}
	}
	if open < 0 {
		return expr, 0, false
	}
	close := -1
	for i := open + 1; i < len(expr); i++ {
		if expr[i] == ']' {
			close = i
			break
		}
	}
	if close < 0 {
		return expr, 0, false
	}
	idx, err := strconv.Atoi(expr[open+1 : close])
	if err != nil {
		return expr, 0, false
	}
	return expr[:open], idx, true
}
