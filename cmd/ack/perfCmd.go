package ack

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dACK/cmd/util"
	"github.com/ValentinKolb/dACK/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dACK servers",
		Long:    "",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfLabelPrefix = "__test"
	perfNumThreads  = 10
	perfSkip        = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	AckCommands.PersistentFlags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. declare,claims)"))
	key = "threads"
	AckCommands.PersistentFlags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for dACK servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	// Unique subscriber/label suffixes across all benchmarks of this run
	var nextID uint64

	declareReleaseResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("declare") {
			return
		}

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				id := atomic.AddUint64(&nextID, 1)
				subscriber := fmt.Sprintf("%s-sub-%d", perfLabelPrefix, id)
				label := fmt.Sprintf("%s-label-%d", perfLabelPrefix, id)

				if err := ackClient.Declare(subscriber, "", []string{label}); err != nil {
					log.Printf("(declare) - error declaring: %v\n", err)
					continue
				}
				if err := ackClient.Release(subscriber); err != nil {
					log.Printf("(declare) - error releasing: %v\n", err)
				}
			}
		})
	})

	results["declare"] = declareReleaseResult
	printResult("declare", declareReleaseResult)

	claimsResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("claims") {
			return
		}

		// One standing claim so the snapshot is not empty
		subscriber := fmt.Sprintf("%s-claims-sub", perfLabelPrefix)
		if err := ackClient.Declare(subscriber, "", []string{perfLabelPrefix + "-claims-label"}); err != nil {
			log.Printf("(claims) - error declaring: %v\n", err)
		}
		b.Cleanup(func() {
			if err := ackClient.Release(subscriber); err != nil {
				log.Printf("(claims) - error releasing: %v\n", err)
			}
		})

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := ackClient.Claims(); err != nil {
					log.Printf("(claims) - error listing claims: %v\n", err)
				}
			}
		})
	})

	results["claims"] = claimsResult
	printResult("claims", claimsResult)

	eventsResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("events") {
			return
		}

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := ackClient.Events(""); err != nil {
					log.Printf("(events) - error draining events: %v\n", err)
				}
			}
		})
	})

	results["events"] = eventsResult
	printResult("events", eventsResult)

	mixedResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("mixed") {
			return
		}

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				id := atomic.AddUint64(&nextID, 1)
				subscriber := fmt.Sprintf("%s-mixed-sub-%d", perfLabelPrefix, id)
				label := fmt.Sprintf("%s-mixed-label-%d", perfLabelPrefix, id)

				var err error
				switch counter % 4 {
				case 0: // declare + release
					if err = ackClient.Declare(subscriber, "", []string{label}); err == nil {
						err = ackClient.Release(subscriber)
					}
				case 1: // claims
					_, err = ackClient.Claims()
				case 2: // events
					_, err = ackClient.Events("")
				case 3: // release of unknown subscriber (idempotent)
					err = ackClient.Release(subscriber)
				}

				if err != nil {
					log.Printf("(mixed) - error performing operation (%d): %v\n", counter%4, err)
				}
				counter++
			}
		})
	})

	results["mixed"] = mixedResult
	printResult("mixed", mixedResult)

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"DomainID", "Serializer", "Transport", "Threads",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
			nsPerOp = 0
			opsPerSec = 0
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetDomainID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
