package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"ballotengine/pkg/log"
)

// Config holds all parameters for an election simulation run.
type Config struct {
	Runs     uint64       // Number of times to run the simulation
	LogLevel log.LogLevel // System logging level (trace, debug, info, error)
	Cores    int          // Number of cores (for parallelization)

	// Election parameters
	Voters         uint64 // Number of shareholders to simulate
	CoprimeRetries uint64 // Max retries when blinding a serial fails to be coprime with n (spec.md §7 CoprimeExhausted)
	MaxWeight      uint64 // Lower bound for the tally's discrete-log recovery search (the search covers at least the sum of ballot weights)

	// Key material parameters
	ElGamalBits uint64 // Bit length of the safe prime p for the ElGamal group (C1/C2)
	RSABits     uint64 // Bit length of the RSA modulus n for blind signing (C2/C5)

	// Storage
	DataDir     string // Directory for elgamal_params_*.json, rsa_params_*.json, used_serials.json, votes.json, hash_chain.json
	ResultsPath string // Path to store metrics data

	// Metrics parameters
	PrintMetrics bool // Print a tree showing all the recorded metrics
	MaxDepth     int  // Maximum depth of the metrics tree to print
	MaxChildren  int  // Maximum number of children to print for each node

	// Crypto parameters
	Seed string // Seed for deterministic random output
}

// NewConfig creates a new Config by parsing command-line flags.
func NewConfig() *Config {
	log.Debug("Parsing command-line flags...")
	runs := flag.Uint64("runs", 1, "Number of times to run the simulation.")
	cores := flag.Int("cores", 1, "Number of CPU cores (0 for All) - 1 for sequential run (w/ add. metrics)")
	voters := flag.Uint64("voters", 100, "Number of shareholders to simulate (issuance + voting).")
	coprimeRetries := flag.Uint64("coprime-retries", 10, "Max retries when a blinding factor is not coprime with the RSA modulus.")
	maxWeight := flag.Uint64("max-weight", 1_000_000, "Lower bound for the tally's discrete-log recovery search.")
	elgamalBits := flag.Uint64("elgamal-bits", 2048, "Bit length of the safe prime p for the ElGamal group.")
	rsaBits := flag.Uint64("rsa-bits", 2048, "Bit length of the RSA modulus for blind signing.")
	dataDir := flag.String("data", "output/data/", "Path for storing persisted election state.")
	resultsPath := flag.String("results", "output/results/", "Path for storing simulation results.")
	printMetrics := flag.Bool("print-metrics", false, "Whether to print detailed metrics tree at the end.")
	maxDepth := flag.Int("max-depth", 2, "Maximum depth of the metrics tree to print")
	maxChildren := flag.Int("max-children", 10, "Maximum number of children to print for each node")
	seed := flag.String("seed", "ballotengine", "Seed for deterministic random output.")
	logLevel := flag.String("log-level", "info", "Set log level (trace, debug, info, error).")
	flag.Parse()

	setLogLevel(*logLevel)

	config := &Config{
		Runs:           *runs,
		Cores:          getCores(*cores),
		Voters:         *voters,
		CoprimeRetries: *coprimeRetries,
		MaxWeight:      *maxWeight,
		ElGamalBits:    *elgamalBits,
		RSABits:        *rsaBits,
		DataDir:        cleanAndCreateDirectory(*dataDir),
		ResultsPath:    cleanAndCreateDirectory(*resultsPath),
		PrintMetrics:   *printMetrics,
		MaxDepth:       *maxDepth,
		MaxChildren:    *maxChildren,
		Seed:           *seed,
	}
	log.Debug("Config: %s", config)
	return config
}

// String returns a string representation of the Config instance
func (c *Config) String() string {
	return fmt.Sprintf("Config%+v", *c)
}

// --- Config Helpers ---

func getCores(cores int) int {
	if cores <= 0 {
		return runtime.NumCPU()
	}
	return cores
}

// cleanAndCreateDirectory ensures the specified directory exists by and creating it if necessary.
func cleanAndCreateDirectory(path string) string {
	path = filepath.Clean(path)
	if err := os.MkdirAll(path, 0755); err != nil {
		log.Fatalf("Failed to create directory %s: %v", path, err)
	}

	return path
}

// setLogLevel sets the global log level to one of "trace", "debug", "info", or "error".
// Defaults to "info" on invalid input.
func setLogLevel(logLevel string) {
	switch logLevel {
	case "trace":
		log.SetLevel(log.LevelTrace)
	case "debug":
		log.SetLevel(log.LevelDebug)
	case "info":
		log.SetLevel(log.LevelInfo)
	case "error":
		log.SetLevel(log.LevelError)
	default:
		log.Info("Unknown log level '%s', defaulting to 'info'", logLevel)
		log.SetLevel(log.LevelInfo)
	}
}
