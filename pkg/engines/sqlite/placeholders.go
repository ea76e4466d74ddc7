package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"unicode"

	"github.com/leapstack-labs/leapdriver/pkg/engine"
)

// maxParamIndex is SQLITE_MAX_VARIABLE_NUMBER for the bundled library.
const maxParamIndex = 32766

// describe validates query by preparing it and counts its placeholders.
// SQLite has no declared parameter types, and the driver reports -1 inputs
// for every statement, so the count comes from the query text.
func describe(ctx context.Context, conn *sql.Conn, query string) (engine.ParamInfo, error) {
	info, err := engine.CountPlaceholders(ctx, conn, query)
	if !errors.Is(err, engine.ErrDescribeUnavailable) {
		return info, err
	}
	if info.Count < 0 {
		info.Count = countPlaceholders(query)
	}
	return info, err
}

// countPlaceholders returns the number of parameters SQLite allocates for
// query: the largest parameter index. A bare ? takes the next index, ?NNN
// takes index NNN, and a :name, @name or $name takes the next index the
// first time the name appears. Literals, quoted identifiers and comments are
// skipped.
func countPlaceholders(query string) int {
	rs := []rune(query)
	n := len(rs)
	highest := 0
	named := map[string]bool{}

	for i := 0; i < n; i++ {
		switch c := rs[i]; c {
		case '\'', '"', '`':
			i = skipQuoted(rs, i, c)
		case '[':
			for i++; i < n && rs[i] != ']'; i++ {
			}
		case '-':
			if i+1 < n && rs[i+1] == '-' {
				for i += 2; i < n && rs[i] != '\n'; i++ {
				}
			}
		case '/':
			if i+1 < n && rs[i+1] == '*' {
				i += 2
				for i+1 < n && !(rs[i] == '*' && rs[i+1] == '/') {
					i++
				}
				i++
			}
		case '?':
			j := i + 1
			for j < n && rs[j] >= '0' && rs[j] <= '9' {
				j++
			}
			if j == i+1 {
				highest++
			} else if idx, err := strconv.Atoi(string(rs[i+1 : j])); err == nil && idx <= maxParamIndex {
				highest = max(highest, idx)
			}
			i = j - 1
		case ':', '@', '$':
			j := i + 1
			for j < n && isNameRune(rs[j]) {
				j++
			}
			if j == i+1 {
				continue
			}
			name := string(rs[i:j])
			if !named[name] {
				named[name] = true
				highest++
			}
			i = j - 1
		}
	}
	return highest
}

// skipQuoted returns the index of the quote closing the literal opened at
// start. A doubled quote is an escaped quote.
func skipQuoted(rs []rune, start int, quote rune) int {
	for i := start + 1; i < len(rs); i++ {
		if rs[i] != quote {
			continue
		}
		if i+1 < len(rs) && rs[i+1] == quote {
			i++
			continue
		}
		return i
	}
	return len(rs)
}

func isNameRune(r rune) bool {
	return r == '_' || r == '$' || r > unicode.MaxASCII || unicode.IsLetter(r) || unicode.IsDigit(r)
}
