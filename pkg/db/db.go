package db

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	bloom "github.com/brown-csci1270/bloofi/pkg/bloom"
	config "github.com/brown-csci1270/bloofi/pkg/config"
	hash "github.com/brown-csci1270/bloofi/pkg/hash"
)

// An index can be a Bloofi tree, a flat index, or a linear scan.
type IndexType int64

const (
	BloofiIndexType IndexType = 0
	FlatIndexType   IndexType = 1
	NaiveIndexType  IndexType = 2
)

func (t IndexType) String() string {
	switch t {
	case BloofiIndexType:
		return "bloofi"
	case FlatIndexType:
		return "flat"
	case NaiveIndexType:
		return "naive"
	}
	return "unknown"
}

// ParseIndexType reads an index type name.
func ParseIndexType(s string) (IndexType, error) {
	switch s {
	case "bloofi":
		return BloofiIndexType, nil
	case "flat":
		return FlatIndexType, nil
	case "naive":
		return NaiveIndexType, nil
	}
	return 0, fmt.Errorf("invalid index type %q", s)
}

// Config holds the filter and index parameters of new tables.
type Config struct {
	Order                    int
	FalsePositiveProbability float64
	ExpectedElements         int
	Metric                   bloom.Metric
	SplitFull                bool
	Seed                     int64
	Code                     hash.CodeFunc
}

// DefaultConfig returns the configuration built from the package defaults.
func DefaultConfig() Config {
	return Config{
		Order:                    config.DefaultOrder,
		FalsePositiveProbability: config.DefaultFalsePositiveProbability,
		ExpectedElements:         config.DefaultExpectedElements,
		Metric:                   bloom.Metric(config.DefaultMetric),
		SplitFull:                config.DefaultSplitFull,
		Seed:                     config.DefaultSeed,
		Code:                     hash.IntCode,
	}
}

// Database is a set of named tables.
type Database struct {
	config Config
	tables map[string]*Table
}

// Open returns an empty database.
func Open(cfg Config) *Database {
	return &Database{
		config: cfg,
		tables: make(map[string]*Table),
	}
}

// Get the configuration.
func (db *Database) GetConfig() Config {
	return db.config
}

// CreateTable creates a table of the given type. A non-positive order uses
// the configured one.
func (db *Database) CreateTable(name string, indexType IndexType, order int) (*Table, error) {
	// Ensure the table name is alphanumeric.
	alphanumeric, _ := regexp.Compile(`\W`)
	if name == "" || alphanumeric.MatchString(name) {
		return nil, errors.New("table name must be alphanumeric")
	}
	if _, ok := db.tables[name]; ok {
		return nil, errors.New("table already exists")
	}
	cfg := db.config
	if order > 0 {
		cfg.Order = order
	}
	table, err := newTable(name, indexType, cfg)
	if err != nil {
		return nil, err
	}
	db.tables[name] = table
	return table, nil
}

// GetTable returns an existing table.
func (db *Database) GetTable(name string) (*Table, error) {
	if table, ok := db.tables[name]; ok {
		return table, nil
	}
	return nil, errors.New("table not found")
}

// Get a database's tables.
func (db *Database) GetTables() map[string]*Table {
	return db.tables
}

// TableNames returns every table name in order.
func (db *Database) TableNames() []string {
	names := make([]string, 0, len(db.tables))
	for name := range db.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
