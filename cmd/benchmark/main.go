// Benchmark tool for load-testing the posd quote endpoint with receipt data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/receipts.csv -url http://localhost:8080
//
// This tool:
//   1. Reads receipt line data (receipt_id, product_id, quantity, unit_price)
//   2. Groups lines into carts and sends each cart to posd for quoting
//   3. Verifies every response against basic pricing sanity checks
//   4. Reports latency percentiles, throughput, and discount statistics
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
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ReceiptLine represents a row from the receipt dataset.
type ReceiptLine struct {
	ReceiptID string
	ProductID string
	BatchID   string
	Quantity  float64
	UnitPrice float64
}

// CartPayload groups the lines of one receipt.
type CartPayload struct {
	ReceiptID string
	Lines     []ReceiptLine
}

// QuoteRequest is the posd API request format.
type QuoteRequest struct {
	CampaignID string     `json:"campaignId,omitempty"`
	Items      []SaleItem `json:"items"`
}

type SaleItem struct {
	LineID    string  `json:"lineId"`
	ProductID string  `json:"productId"`
	BatchID   string  `json:"batchId,omitempty"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// QuoteResponse is the posd API response format.
type QuoteResponse struct {
	QuoteID      string `json:"quoteId"`
	CampaignID   string `json:"campaignId,omitempty"`
	CampaignName string `json:"campaignName,omitempty"`
	Status       string `json:"status"`
	Result       struct {
		OriginalTotal     float64 `json:"originalTotal"`
		TotalItemDiscount float64 `json:"totalItemDiscount"`
		TotalCartDiscount float64 `json:"totalCartDiscount"`
		TotalDiscount     float64 `json:"totalDiscount"`
		FinalTotal        float64 `json:"finalTotal"`
	} `json:"result"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TotalProcessed int64
	TotalErrors    int64
	TotalMismatch  int64 // Responses that failed a sanity check

	CartsDiscounted int64

	mu        sync.Mutex
	original  float64
	discount  float64
	latencies []time.Duration
}

func (m *Metrics) record(latency time.Duration, original, discount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, latency)
	m.original += original
	m.discount += discount
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to receipt CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "posd base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	campaignID := flag.String("campaign", "", "Pin a specific campaign ID (empty = auto-select)")
	limit := flag.Int("limit", 10000, "Maximum carts to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each cart result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/receipts.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║            POSD BENCHMARK - Receipt Quote Replay              ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("posd URL:    %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	// Check posd is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: posd not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure posd is running:")
		fmt.Println("  go run cmd/posd/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ posd is healthy")

	// Read receipt data
	fmt.Printf("\nReading receipt data from %s...\n", *csvPath)
	carts, err := readReceiptCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d carts\n", len(carts))

	lineCount := 0
	for _, c := range carts {
		lineCount += len(c.Lines)
	}
	fmt.Printf("  - Lines:          %d\n", lineCount)
	fmt.Printf("  - Lines per cart: %.1f\n", float64(lineCount)/float64(len(carts)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(carts, *baseURL, *tenantID, *campaignID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readReceiptCSV(path string, limit int) ([]CartPayload, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"receipt_id", "product_id", "quantity", "unit_price"} {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("missing column %q in header", required)
		}
	}

	byReceipt := make(map[string]*CartPayload)
	var order []string

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		receiptID := record[colIndex["receipt_id"]]
		quantity, _ := strconv.ParseFloat(record[colIndex["quantity"]], 64)
		unitPrice, _ := strconv.ParseFloat(record[colIndex["unit_price"]], 64)
		if receiptID == "" || quantity <= 0 || unitPrice < 0 {
			continue
		}

		line := ReceiptLine{
			ReceiptID: receiptID,
			ProductID: record[colIndex["product_id"]],
			Quantity:  quantity,
			UnitPrice: unitPrice,
		}
		if idx, ok := colIndex["batch_id"]; ok {
			line.BatchID = record[idx]
		}

		cart, ok := byReceipt[receiptID]
		if !ok {
			if limit > 0 && len(order) >= limit {
				continue
			}
			cart = &CartPayload{ReceiptID: receiptID}
			byReceipt[receiptID] = cart
			order = append(order, receiptID)
		}
		cart.Lines = append(cart.Lines, line)
	}

	carts := make([]CartPayload, 0, len(order))
	for _, id := range order {
		carts = append(carts, *byReceipt[id])
	}
	return carts, nil
}

func runBenchmark(carts []CartPayload, baseURL, tenantID, campaignID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan CartPayload, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for cart := range work {
				start := time.Now()
				result, err := quoteCart(client, baseURL, tenantID, campaignID, cart)
				elapsed := time.Since(start)

				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", cart.ReceiptID, err)
					}
					continue
				}

				// Sanity checks on the pricing result
				r := result.Result
				ok := r.FinalTotal >= 0 &&
					r.TotalDiscount >= 0 &&
					r.TotalDiscount <= r.OriginalTotal+0.01 &&
					withinCent(r.OriginalTotal-r.TotalDiscount, r.FinalTotal)
				if !ok {
					atomic.AddInt64(&metrics.TotalMismatch, 1)
				}

				if r.TotalDiscount > 0 {
					atomic.AddInt64(&metrics.CartsDiscounted, 1)
				}
				metrics.record(elapsed, r.OriginalTotal, r.TotalDiscount)

				if verbose {
					status := "✓"
					if !ok {
						status = "✗"
					}
					fmt.Printf("%s %-12s | Lines: %2d | Original: %10.2f | Discount: %9.2f | Final: %10.2f | %s\n",
						status,
						cart.ReceiptID,
						len(cart.Lines),
						r.OriginalTotal,
						r.TotalDiscount,
						r.FinalTotal,
						result.CampaignName,
					)
				}
			}
		}()
	}

	// Send work
	for _, cart := range carts {
		work <- cart
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func withinCent(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= 0.01
}

func quoteCart(client *http.Client, baseURL, tenantID, campaignID string, cart CartPayload) (*QuoteResponse, error) {
	req := QuoteRequest{CampaignID: campaignID}
	for i, line := range cart.Lines {
		req.Items = append(req.Items, SaleItem{
			LineID:    fmt.Sprintf("%s-%d", cart.ReceiptID, i+1),
			ProductID: line.ProductID,
			BatchID:   line.BatchID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/quote", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result QuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)
	fmt.Printf("   Sanity Failures:  %d\n", m.TotalMismatch)

	fmt.Printf("\n💸 DISCOUNT STATISTICS\n")
	fmt.Printf("   Carts Discounted: %d\n", m.CartsDiscounted)
	m.mu.Lock()
	original := m.original
	discount := m.discount
	latencies := make([]time.Duration, len(m.latencies))
	copy(latencies, m.latencies)
	m.mu.Unlock()
	fmt.Printf("   Gross Sales:      %.2f\n", original)
	fmt.Printf("   Total Discount:   %.2f\n", discount)
	if original > 0 {
		fmt.Printf("   Discount Rate:    %.2f%%\n", 100*discount/original)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Printf("   Avg Latency:      %.2f ms\n", float64(sum.Microseconds())/float64(len(latencies))/1000)
		fmt.Printf("   p50 Latency:      %.2f ms\n", float64(percentile(latencies, 0.50).Microseconds())/1000)
		fmt.Printf("   p95 Latency:      %.2f ms\n", float64(percentile(latencies, 0.95).Microseconds())/1000)
		fmt.Printf("   p99 Latency:      %.2f ms\n", float64(percentile(latencies, 0.99).Microseconds())/1000)
		fmt.Printf("   Throughput:       %.2f carts/sec\n", float64(m.TotalProcessed)/duration.Seconds())
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if m.TotalMismatch == 0 {
		fmt.Println("   ✅ All responses passed pricing sanity checks")
	} else {
		fmt.Println("   ❌ Some responses failed pricing sanity checks - inspect with -verbose")
	}
	errRate := float64(0)
	if m.TotalProcessed > 0 {
		errRate = float64(m.TotalErrors) / float64(m.TotalProcessed)
	}
	if errRate == 0 {
		fmt.Println("   ✅ No request errors")
	} else if errRate < 0.01 {
		fmt.Println("   ⚠️  Occasional request errors")
	} else {
		fmt.Println("   ❌ High error rate - check server logs")
	}

	fmt.Println()
}
