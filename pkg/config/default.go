// Global bloofi config.
package config

// Name of the index shell.
const DBName = "bloofi"

// Prompt printed by REPL.
const Prompt = DBName + "> "

// Default branching order of the tree index.
const DefaultOrder = 2

// Default target false positive probability of a single filter.
const DefaultFalsePositiveProbability = 0.01

// Default expected number of elements per filter.
const DefaultExpectedElements = 1000

// Default distance metric (1 = Hamming, 2 = Jaccard, 3 = Cosine).
const DefaultMetric = 1

// Whether saturated (all-ones) nodes are split anyway.
const DefaultSplitFull = true

// Seed for the hash family and tie-breaking; 0 means time-seeded.
const DefaultSeed = 0

// Largest key probed by the compare command.
const DefaultCompareMaxKey = 2000

// Name of the history file.
const HistoryFileName = "./bloofi.history"

// Return prompt if requested, else "".
func GetPrompt(flag bool) string {
	if flag {
		return Prompt
	}
	return ""
}
