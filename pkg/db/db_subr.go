package db

import (
	"strconv"
)

// parseKeys reads every field as an integer key.
func parseKeys(fields []string) ([]int64, error) {
	keys := make([]int64, len(fields))
	for i, f := range fields {
		key, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}
	return keys, nil
}

// parseFilterCommand reads "<verb> <id> <key>... <sep> <table>".
func parseFilterCommand(fields []string, sep string) (id int, keys []int64, table string, err error) {
	n := len(fields)
	if n < 4 || fields[n-2] != sep {
		return 0, nil, "", errUsage
	}
	if id, err = strconv.Atoi(fields[1]); err != nil {
		return 0, nil, "", err
	}
	if keys, err = parseKeys(fields[2 : n-2]); err != nil {
		return 0, nil, "", err
	}
	return id, keys, fields[n-1], nil
}
