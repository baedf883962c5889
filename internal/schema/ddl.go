package schema

import (
	"fmt"
	"strings"
)

// Quote returns name as a double-quoted SQL identifier.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SchemaSQL returns the CREATE statements for every registered table.
// Statements are idempotent so an existing world file is left untouched.
func (r *Registry) SchemaSQL() string {
	var b strings.Builder
	for _, name := range r.order {
		b.WriteString(r.types[name].createSQL())
	}
	return b.String()
}

func (rt *RecordType) createSQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", Quote(rt.Category))

	cols := make([]string, 0, len(rt.Columns)+1)
	if rt.Category == WorldTable {
		// world is keyed by its name
		for _, c := range rt.Columns {
			def := fmt.Sprintf("    %s %s", Quote(c.Name), c.Kind)
			if c.Name == ColName {
				def += " PRIMARY KEY"
			}
			if c.Required {
				def += " NOT NULL"
			}
			cols = append(cols, def)
		}
	} else {
		cols = append(cols, fmt.Sprintf("    %s INTEGER PRIMARY KEY AUTOINCREMENT", Quote(ColID)))
		for _, c := range rt.Columns {
			def := fmt.Sprintf("    %s %s", Quote(c.Name), c.Kind)
			if c.Required {
				def += " NOT NULL"
			}
			cols = append(cols, def)
		}
	}
	b.WriteString(strings.Join(cols, ",\n"))
	b.WriteString("\n);\n")

	switch {
	case rt.Category == TagsTable:
		b.WriteString("CREATE INDEX IF NOT EXISTS idx_tags_entry_name ON tags(entry_name);\n")
	case !rt.Structural:
		fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS %s ON %s(name);\n",
			Quote("idx_"+rt.Category+"_name"), Quote(rt.Category))
	}
	return b.String()
}
