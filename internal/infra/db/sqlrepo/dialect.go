package sqlrepo

import (
	"strconv"
	"strings"
)

// Dialect captures what differs between the supported SQL engines.
type Dialect struct {
	Name string
	// Numbered uses $1, $2 placeholders instead of ?.
	Numbered bool
	// Returning reads generated ids with INSERT ... RETURNING id
	// instead of LastInsertId.
	Returning bool
	// Schema is applied one statement at a time by Migrate.
	Schema []string
}

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(q string) string {
	if !d.Numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// placeholders returns "?, ?, ?" for n args.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
