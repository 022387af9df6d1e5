package db

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	repl "github.com/brown-csci1270/bloofi/pkg/repl"
	stats "github.com/brown-csci1270/bloofi/pkg/stats"

	uuid "github.com/google/uuid"
)

var errUsage = errors.New("bad usage")

// Creates a DB Repl for the given database.
func DatabaseRepl(db *Database) *repl.REPL {
	r := repl.NewRepl()
	r.AddCommand("create", func(payload string, replConfig *repl.REPLConfig) error {
		return HandleCreateTable(db, payload, replConfig.GetAddr(), replConfig.GetWriter())
	}, "Create an index. usage: create <bloofi|flat|naive> index <table> [order]")
	r.AddCommand("insert", func(payload string, replConfig *repl.REPLConfig) error {
		return HandleInsert(db, payload)
	}, "Insert a filter. usage: insert <id> <key>... into <table>")
	r.AddCommand("update", func(payload string, replConfig *repl.REPLConfig) error {
		return HandleUpdate(db, payload)
	}, "Add keys to a filter. usage: update <id> <key>... in <table>")
	r.AddCommand("replace", func(payload string, replConfig *repl.REPLConfig) error {
		return HandleReplace(db, payload)
	}, "Replace a filter. usage: replace <id> <key>... in <table>")
	r.AddCommand("delete", func(payload string, replConfig *repl.REPLConfig) error {
		return HandleDelete(db, payload)
	}, "Delete a filter. usage: delete <id> from <table>")
	r.AddCommand("search", func(payload string, replConfig *repl.REPLConfig) error {
		return HandleSearch(db, payload, replConfig.GetWriter())
	}, "Find the filters that may hold a key. usage: search <key> in <table>")
	r.AddCommand("load", func(payload string, replConfig *repl.REPLConfig) error {
		return HandleLoad(db, payload, replConfig.GetWriter())
	}, "Insert random filters. usage: load <count> <keysPerFilter> into <table> [seed]")
	r.AddCommand("info", func(payload string, replConfig *repl.REPLConfig) error {
		return HandleInfo(db, payload, replConfig.GetWriter())
	}, "Print index statistics. usage: info <table>")
	r.AddCommand("pretty", func(payload string, replConfig *repl.REPLConfig) error {
		return HandlePretty(db, payload, replConfig.GetWriter())
	}, "Print out the internal data representation. usage: pretty <table>")
	r.AddCommand("tables", func(payload string, replConfig *repl.REPLConfig) error {
		return HandleTables(db, replConfig.GetWriter())
	}, "List the tables. usage: tables")
	return r
}

// Handle create table.
func HandleCreateTable(d *Database, payload string, creator uuid.UUID, w io.Writer) (err error) {
	fields := strings.Fields(payload)
	numFields := len(fields)
	// Usage: create <type> index <table> [order]
	if (numFields != 4 && numFields != 5) || fields[2] != "index" {
		return fmt.Errorf("usage: create <bloofi|flat|naive> index <table> [order]")
	}
	indexType, err := ParseIndexType(fields[1])
	if err != nil {
		return fmt.Errorf("create error: %v", err)
	}
	order := 0
	if numFields == 5 {
		if order, err = strconv.Atoi(fields[4]); err != nil {
			return fmt.Errorf("create error: %v", err)
		}
	}
	tableName := fields[3]
	table, err := d.CreateTable(tableName, indexType, order)
	if err != nil {
		return fmt.Errorf("create error: %v", err)
	}
	table.SetCreator(creator)
	io.WriteString(w, fmt.Sprintf("%s index %s created.\n", fields[1], tableName))
	return nil
}

// Handle insert.
func HandleInsert(d *Database, payload string) (err error) {
	// Usage: insert <id> <key>... into <table>
	id, keys, tableName, err := parseFilterCommand(strings.Fields(payload), "into")
	if err == errUsage {
		return fmt.Errorf("usage: insert <id> <key>... into <table>")
	} else if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	table, err := d.GetTable(tableName)
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	if err = table.Insert(id, keys); err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	return nil
}

// Handle update.
func HandleUpdate(d *Database, payload string) (err error) {
	// Usage: update <id> <key>... in <table>
	id, keys, tableName, err := parseFilterCommand(strings.Fields(payload), "in")
	if err == errUsage {
		return fmt.Errorf("usage: update <id> <key>... in <table>")
	} else if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	table, err := d.GetTable(tableName)
	if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	if err = table.Update(id, keys); err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	return nil
}

// Handle replace.
func HandleReplace(d *Database, payload string) (err error) {
	// Usage: replace <id> <key>... in <table>
	id, keys, tableName, err := parseFilterCommand(strings.Fields(payload), "in")
	if err == errUsage {
		return fmt.Errorf("usage: replace <id> <key>... in <table>")
	} else if err != nil {
		return fmt.Errorf("replace error: %v", err)
	}
	table, err := d.GetTable(tableName)
	if err != nil {
		return fmt.Errorf("replace error: %v", err)
	}
	if err = table.Replace(id, keys); err != nil {
		return fmt.Errorf("replace error: %v", err)
	}
	return nil
}

// Handle delete.
func HandleDelete(d *Database, payload string) (err error) {
	fields := strings.Fields(payload)
	numFields := len(fields)
	// Usage: delete <id> from <table>
	var id int
	if numFields != 4 || fields[2] != "from" {
		return fmt.Errorf("usage: delete <id> from <table>")
	}
	if id, err = strconv.Atoi(fields[1]); err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	table, err := d.GetTable(fields[3])
	if err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	if err = table.Delete(id); err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	return nil
}

// Handle search.
func HandleSearch(d *Database, payload string, w io.Writer) (err error) {
	fields := strings.Fields(payload)
	numFields := len(fields)
	// Usage: search <key> in <table>
	var key int64
	if numFields != 4 || fields[2] != "in" {
		return fmt.Errorf("usage: search <key> in <table>")
	}
	if key, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
		return fmt.Errorf("search error: %v", err)
	}
	table, err := d.GetTable(fields[3])
	if err != nil {
		return fmt.Errorf("search error: %v", err)
	}
	s := &stats.SearchStats{}
	ids := table.Search(key, s)
	printResults(ids, w)
	io.WriteString(w, fmt.Sprintf("%d matches, %v\n", len(ids), s))
	return nil
}

// Handle load.
func HandleLoad(d *Database, payload string, w io.Writer) (err error) {
	fields := strings.Fields(payload)
	numFields := len(fields)
	// Usage: load <count> <keysPerFilter> into <table> [seed]
	var count, keysPerFilter int
	var seed int64
	if (numFields != 5 && numFields != 6) || fields[3] != "into" {
		return fmt.Errorf("usage: load <count> <keysPerFilter> into <table> [seed]")
	}
	if count, err = strconv.Atoi(fields[1]); err != nil {
		return fmt.Errorf("load error: %v", err)
	}
	if keysPerFilter, err = strconv.Atoi(fields[2]); err != nil {
		return fmt.Errorf("load error: %v", err)
	}
	if numFields == 6 {
		if seed, err = strconv.ParseInt(fields[5], 10, 64); err != nil {
			return fmt.Errorf("load error: %v", err)
		}
	}
	table, err := d.GetTable(fields[4])
	if err != nil {
		return fmt.Errorf("load error: %v", err)
	}
	if err = table.Load(count, keysPerFilter, seed); err != nil {
		return fmt.Errorf("load error: %v", err)
	}
	io.WriteString(w, fmt.Sprintf("%d filters loaded into %s.\n", count, fields[4]))
	return nil
}

// Handle info.
func HandleInfo(d *Database, payload string, w io.Writer) (err error) {
	fields := strings.Fields(payload)
	// Usage: info <table>
	if len(fields) != 2 {
		return fmt.Errorf("usage: info <table>")
	}
	table, err := d.GetTable(fields[1])
	if err != nil {
		return fmt.Errorf("info error: %v", err)
	}
	table.PrintInfo(w)
	return nil
}

// Handle pretty printing.
func HandlePretty(d *Database, payload string, w io.Writer) (err error) {
	fields := strings.Fields(payload)
	// Usage: pretty <table>
	if len(fields) != 2 {
		return fmt.Errorf("usage: pretty <table>")
	}
	table, err := d.GetTable(fields[1])
	if err != nil {
		return fmt.Errorf("pretty error: %v", err)
	}
	table.GetIndex().Print(w)
	return nil
}

// Handle tables.
func HandleTables(d *Database, w io.Writer) error {
	for _, name := range d.TableNames() {
		table := d.tables[name]
		io.WriteString(w, fmt.Sprintf("%s (%s, %d filters)\n", name, table.GetType(), len(table.filters)))
	}
	return nil
}

// printResults prints matching ids in a standard format.
func printResults(ids []int, w io.Writer) {
	for _, id := range ids {
		io.WriteString(w, fmt.Sprintf("(%v)\n", id))
	}
}
