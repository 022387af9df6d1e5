package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	bloom "github.com/brown-csci1270/bloofi/pkg/bloom"
	config "github.com/brown-csci1270/bloofi/pkg/config"
	db "github.com/brown-csci1270/bloofi/pkg/db"
	hash "github.com/brown-csci1270/bloofi/pkg/hash"
	query "github.com/brown-csci1270/bloofi/pkg/query"
	repl "github.com/brown-csci1270/bloofi/pkg/repl"

	uuid "github.com/google/uuid"
)

// Listens for SIGINT or SIGTERM and closes the history file.
func setupCloseHandler(history *repl.History) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("closehandler invoked")
		if history != nil {
			history.Close()
		}
		os.Exit(0)
	}()
}

// Start the index shell.
func main() {
	// Set up flags.
	var promptFlag = flag.Bool("c", true, "use prompt?")
	var orderFlag = flag.Int("order", config.DefaultOrder, "order of the tree index")
	var fppFlag = flag.Float64("fpp", config.DefaultFalsePositiveProbability, "false positive probability of each filter")
	var nFlag = flag.Int("n", config.DefaultExpectedElements, "expected number of elements per filter")
	var metricFlag = flag.String("metric", bloom.Metric(config.DefaultMetric).String(), "distance metric: [hamming,jaccard,cosine]")
	var codeFlag = flag.String("code", "int", "key hash code: [int,xxhash,murmur]")
	var seedFlag = flag.Int64("seed", config.DefaultSeed, "random seed (0 seeds from the clock)")
	var splitFullFlag = flag.Bool("splitfull", config.DefaultSplitFull, "split nodes whose filter is all ones?")
	var historyFlag = flag.String("history", config.HistoryFileName, "history file (empty disables history)")
	flag.Parse()
	// Build the configuration.
	cfg := db.DefaultConfig()
	if *orderFlag < 1 {
		log.Fatalf("order must be at least 1, got %d", *orderFlag)
	}
	cfg.Order = *orderFlag
	cfg.FalsePositiveProbability = *fppFlag
	cfg.ExpectedElements = *nFlag
	metric, err := bloom.ParseMetric(*metricFlag)
	if err != nil {
		log.Fatal(err)
	}
	cfg.Metric = metric
	code, ok := hash.CodeByName(*codeFlag)
	if !ok {
		log.Fatalf("unknown hash code %q", *codeFlag)
	}
	cfg.Code = code
	cfg.Seed = *seedFlag
	cfg.SplitFull = *splitFullFlag
	// Open the db.
	database := db.Open(cfg)
	// Combine the REPLs.
	r, err := repl.CombineRepls([]*repl.REPL{db.DatabaseRepl(database), query.QueryRepl(database)})
	if err != nil {
		log.Fatal(err)
	}
	// Set up the history file.
	var history *repl.History
	if *historyFlag != "" {
		history, err = repl.OpenHistory(*historyFlag)
		if err != nil {
			log.Fatal(err)
		}
		defer history.Close()
		r.SetHistory(history)
	}
	setupCloseHandler(history)
	// Run the REPL on stdin.
	prompt := config.GetPrompt(*promptFlag)
	r.Run(os.Stdin, os.Stdout, uuid.New(), prompt)
}
