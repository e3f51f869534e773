// Benchmark tool for testing SikaGuard against labeled SMS corpora.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/sms.csv -url http://localhost:8080
//
// The CSV must have a header row with columns: user_id, message, is_scam
// (is_scam is 1/0 or true/false). This tool:
//   1. Sends each message to SikaGuard for analysis
//   2. Compares the alert decision with the scam label
//   3. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledMessage is a row from the benchmark corpus.
type LabeledMessage struct {
	UserID  string
	Message string
	IsScam  bool
}

// AnalyzeRequest is the SikaGuard API request format.
type AnalyzeRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// AnalyzeResponse is the subset of the API response the benchmark needs.
type AnalyzeResponse struct {
	Analyses []struct {
		TotalScore  int      `json:"totalScore"`
		RiskLevel   string   `json:"riskLevel"`
		ShouldAlert bool     `json:"shouldAlert"`
		RiskFactors []string `json:"riskFactors"`
	} `json:"analyses"`
	Rejected bool `json:"rejected"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Scam alerted
	FalsePositives int64 // Clean alerted
	TrueNegatives  int64 // Clean passed
	FalseNegatives int64 // Scam passed (missed!)

	TotalProcessed int64
	TotalRejected  int64
	TotalErrors    int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to labeled SMS CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "SikaGuard base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum messages to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each message result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/sms.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        SIKAGUARD BENCHMARK - SMS Scam Detection               ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:      %s\n", *csvPath)
	fmt.Printf("SikaGuard URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:     %s\n", *tenantID)
	fmt.Printf("Workers:       %d\n", *workers)
	fmt.Printf("Limit:         %d\n", *limit)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: SikaGuard not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure SikaGuard is running:")
		fmt.Println("  go run cmd/sikaguard/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ SikaGuard is healthy")

	fmt.Printf("\nReading messages from %s...\n", *csvPath)
	messages, err := readCorpusCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d messages\n", len(messages))

	scamCount := 0
	for _, m := range messages {
		if m.IsScam {
			scamCount++
		}
	}
	fmt.Printf("  - Scam:  %d (%.2f%%)\n", scamCount, 100*float64(scamCount)/float64(len(messages)))
	fmt.Printf("  - Clean: %d (%.2f%%)\n", len(messages)-scamCount, 100*float64(len(messages)-scamCount)/float64(len(messages)))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(messages, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}
	return nil
}

func readCorpusCSV(path string, limit int) ([]LabeledMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"user_id", "message", "is_scam"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var messages []LabeledMessage
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		label := strings.ToLower(strings.TrimSpace(record[col["is_scam"]]))
		messages = append(messages, LabeledMessage{
			UserID:  record[col["user_id"]],
			Message: record[col["message"]],
			IsScam:  label == "1" || label == "true",
		})

		if limit > 0 && len(messages) >= limit {
			break
		}
	}
	return messages, nil
}

func runBenchmark(messages []LabeledMessage, baseURL, tenantID string, workers int, verbose bool) *Metrics {
	metrics := &Metrics{}
	client := &http.Client{Timeout: 30 * time.Second}

	jobs := make(chan LabeledMessage, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range jobs {
				processMessage(client, baseURL, tenantID, msg, metrics, verbose)
			}
		}()
	}

	for _, msg := range messages {
		jobs <- msg
	}
	close(jobs)
	wg.Wait()

	return metrics
}

func processMessage(client *http.Client, baseURL, tenantID string, msg LabeledMessage, metrics *Metrics, verbose bool) {
	body, _ := json.Marshal(AnalyzeRequest{UserID: msg.UserID, Message: msg.Message})

	req, err := http.NewRequest(http.MethodPost, baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&metrics.TotalErrors, 1)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(req)
	if err != nil {
		atomic.AddInt64(&metrics.TotalErrors, 1)
		return
	}
	defer resp.Body.Close()

	atomic.AddInt64(&metrics.TotalProcessed, 1)

	var result AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		atomic.AddInt64(&metrics.TotalErrors, 1)
		return
	}

	if result.Rejected {
		atomic.AddInt64(&metrics.TotalRejected, 1)
		// A rejected scam message is a miss; a rejected clean message is fine.
		if msg.IsScam {
			atomic.AddInt64(&metrics.FalseNegatives, 1)
		} else {
			atomic.AddInt64(&metrics.TrueNegatives, 1)
		}
		return
	}

	alerted := false
	for _, a := range result.Analyses {
		if a.ShouldAlert {
			alerted = true
			break
		}
	}

	switch {
	case msg.IsScam && alerted:
		atomic.AddInt64(&metrics.TruePositives, 1)
	case msg.IsScam && !alerted:
		atomic.AddInt64(&metrics.FalseNegatives, 1)
	case !msg.IsScam && alerted:
		atomic.AddInt64(&metrics.FalsePositives, 1)
	default:
		atomic.AddInt64(&metrics.TrueNegatives, 1)
	}

	if verbose {
		fmt.Printf("  scam=%v alerted=%v %.60s\n", msg.IsScam, alerted, msg.Message)
	}
}

func printResults(m *Metrics, duration time.Duration) {
	tp := float64(m.TruePositives)
	fp := float64(m.FalsePositives)
	fn := float64(m.FalseNegatives)

	precision := 0.0
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	recall := 0.0
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nProcessed:  %d messages in %s (%.1f msg/s)\n",
		m.TotalProcessed, duration.Round(time.Millisecond),
		float64(m.TotalProcessed)/duration.Seconds())
	fmt.Printf("Rejected:   %d\n", m.TotalRejected)
	fmt.Printf("Errors:     %d\n", m.TotalErrors)
	fmt.Println("\nConfusion Matrix:")
	fmt.Printf("  True Positives:  %6d  (scam alerted)\n", m.TruePositives)
	fmt.Printf("  False Positives: %6d  (clean alerted)\n", m.FalsePositives)
	fmt.Printf("  True Negatives:  %6d  (clean passed)\n", m.TrueNegatives)
	fmt.Printf("  False Negatives: %6d  (scam missed)\n", m.FalseNegatives)
	fmt.Println("\nScores:")
	fmt.Printf("  Precision: %.4f\n", precision)
	fmt.Printf("  Recall:    %.4f\n", recall)
	fmt.Printf("  F1-Score:  %.4f\n", f1)
	fmt.Println()
}
