package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	config "github.com/brown-csci1270/bloofi/pkg/config"
	db "github.com/brown-csci1270/bloofi/pkg/db"
	repl "github.com/brown-csci1270/bloofi/pkg/repl"
)

// Query REPL.
func QueryRepl(d *db.Database) *repl.REPL {
	r := repl.NewRepl()
	r.AddCommand("compare", func(payload string, replConfig *repl.REPLConfig) error {
		return HandleCompare(d, payload, replConfig.GetWriter())
	}, "Check that two indexes agree on keys 0 to maxKey. usage: compare <table1> <table2> [maxKey]")
	r.AddCommand("searchall", func(payload string, replConfig *repl.REPLConfig) error {
		return HandleSearchAll(d, payload, replConfig.GetWriter())
	}, "Search keys 0 to maxKey concurrently. usage: searchall <table> [maxKey] [workers]")
	return r
}

// parseMaxKey reads an optional maxKey field.
func parseMaxKey(fields []string, i int) (int64, error) {
	if len(fields) <= i {
		return config.DefaultCompareMaxKey, nil
	}
	maxKey, err := strconv.ParseInt(fields[i], 10, 64)
	if err != nil {
		return 0, err
	}
	if maxKey < 0 {
		return 0, fmt.Errorf("maxKey must be non-negative, got %d", maxKey)
	}
	return maxKey, nil
}

// Handle compare.
func HandleCompare(d *db.Database, payload string, w io.Writer) (err error) {
	fields := strings.Fields(payload)
	numFields := len(fields)
	// Usage: compare <table1> <table2> [maxKey]
	if numFields != 3 && numFields != 4 {
		return fmt.Errorf("usage: compare <table1> <table2> [maxKey]")
	}
	maxKey, err := parseMaxKey(fields, 3)
	if err != nil {
		return fmt.Errorf("compare error: %v", err)
	}
	table1, err := d.GetTable(fields[1])
	if err != nil {
		return fmt.Errorf("compare error: %v", err)
	}
	table2, err := d.GetTable(fields[2])
	if err != nil {
		return fmt.Errorf("compare error: %v", err)
	}
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()
	err = Compare(ctx, table1.GetIndex(), table2.GetIndex(), KeyRange(maxKey))
	var mismatch *Mismatch
	if errors.As(err, &mismatch) {
		io.WriteString(w, fmt.Sprintf("%v\n", mismatch))
		return nil
	} else if err != nil {
		return fmt.Errorf("compare error: %v", err)
	}
	io.WriteString(w, fmt.Sprintf("%s and %s agree on keys 0 to %d.\n", fields[1], fields[2], maxKey))
	return nil
}

// Handle searchall.
func HandleSearchAll(d *db.Database, payload string, w io.Writer) (err error) {
	fields := strings.Fields(payload)
	numFields := len(fields)
	// Usage: searchall <table> [maxKey] [workers]
	if numFields < 2 || numFields > 4 {
		return fmt.Errorf("usage: searchall <table> [maxKey] [workers]")
	}
	maxKey, err := parseMaxKey(fields, 2)
	if err != nil {
		return fmt.Errorf("searchall error: %v", err)
	}
	workers := 0
	if numFields == 4 {
		if workers, err = strconv.Atoi(fields[3]); err != nil {
			return fmt.Errorf("searchall error: %v", err)
		}
	}
	table, err := d.GetTable(fields[1])
	if err != nil {
		return fmt.Errorf("searchall error: %v", err)
	}
	results, s, err := SearchAll(context.Background(), table.GetIndex(), KeyRange(maxKey), workers)
	if err != nil {
		return fmt.Errorf("searchall error: %v", err)
	}
	matches := 0
	for _, ids := range results {
		matches += len(ids)
	}
	io.WriteString(w, fmt.Sprintf("%d keys, %d matches, %v\n", len(results), matches, s))
	return nil
}
