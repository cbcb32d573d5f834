package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type SendBulkRequest struct {
	PhoneNumbers []string `json:"phoneNumbers"`
	Text         string   `json:"text"`
	GroupID      string   `json:"groupId,omitempty"`
}

type SendBulkResponse struct {
	Success    bool   `json:"success"`
	DispatchID string `json:"dispatchId"`
}

type LoadTestResult struct {
	TotalRequests   int
	SuccessCount    int32
	FailureCount    int32
	TotalDuration   time.Duration
	RequestsPerSec  float64
	AvgResponseTime time.Duration
	MinResponseTime time.Duration
	MaxResponseTime time.Duration
	Errors          map[string]int
}

type target struct {
	url        string
	secret     string
	recipients int
}

func runLoadTest(t target, numRequests int, concurrency int) *LoadTestResult {
	var (
		successCount  atomic.Int32
		failureCount  atomic.Int32
		totalRespTime atomic.Int64
		minRespTime   atomic.Int64
		maxRespTime   atomic.Int64
		errorsMu      sync.Mutex
		errors        = make(map[string]int)
		wg            sync.WaitGroup
		semaphore     = make(chan struct{}, concurrency)
	)
	minRespTime.Store(int64(^uint64(0) >> 1))

	recordError := func(msg string) {
		failureCount.Add(1)
		errorsMu.Lock()
		errors[msg]++
		errorsMu.Unlock()
	}

	startTime := time.Now()

	fmt.Printf("\n🚀 Starting load test: %d requests with concurrency %d\n", numRequests, concurrency)
	fmt.Printf("Target: %s (%d recipients per request)\n", t.url, t.recipients)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(reqNum int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			phones := make([]string, t.recipients)
			for j := range phones {
				phones[j] = fmt.Sprintf("92300%03d%04d", j%1000, reqNum%10000)
			}
			payload, err := json.Marshal(SendBulkRequest{
				PhoneNumbers: phones,
				Text:         fmt.Sprintf("Test message from load test request #%d", reqNum),
				GroupID:      fmt.Sprintf("load-test-%d", reqNum),
			})
			if err != nil {
				recordError(err.Error())
				return
			}

			req, err := http.NewRequest(http.MethodPost, t.url, bytes.NewReader(payload))
			if err != nil {
				recordError(err.Error())
				return
			}
			req.Header.Set("Content-Type", "application/json")
			if t.secret != "" {
				req.Header.Set("Authorization", "Bearer "+t.secret)
			}

			reqStart := time.Now()
			resp, err := http.DefaultClient.Do(req)
			respTimeNs := time.Since(reqStart).Nanoseconds()
			totalRespTime.Add(respTimeNs)

			for {
				oldMin := minRespTime.Load()
				if respTimeNs >= oldMin || minRespTime.CompareAndSwap(oldMin, respTimeNs) {
					break
				}
			}
			for {
				oldMax := maxRespTime.Load()
				if respTimeNs <= oldMax || maxRespTime.CompareAndSwap(oldMax, respTimeNs) {
					break
				}
			}

			if err != nil {
				recordError(err.Error())
				return
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
				recordError(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)))
				return
			}

			var out SendBulkResponse
			if err := json.Unmarshal(body, &out); err != nil || !out.Success {
				recordError("unexpected response body")
				return
			}

			successCount.Add(1)

			if reqNum%10 == 0 {
				fmt.Print(".")
			}
		}(i)
	}

	wg.Wait()
	totalDuration := time.Since(startTime)

	fmt.Println("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return &LoadTestResult{
		TotalRequests:   numRequests,
		SuccessCount:    successCount.Load(),
		FailureCount:    failureCount.Load(),
		TotalDuration:   totalDuration,
		RequestsPerSec:  float64(numRequests) / totalDuration.Seconds(),
		AvgResponseTime: time.Duration(totalRespTime.Load() / int64(max(numRequests, 1))),
		MinResponseTime: time.Duration(minRespTime.Load()),
		MaxResponseTime: time.Duration(maxRespTime.Load()),
		Errors:          errors,
	}
}

func printResults(result *LoadTestResult) {
	fmt.Printf("\n📊 Load Test Results\n")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Total Requests:      %d\n", result.TotalRequests)
	fmt.Printf("✅ Success:           %d (%.2f%%)\n", result.SuccessCount, float64(result.SuccessCount)/float64(result.TotalRequests)*100)
	fmt.Printf("❌ Failed:            %d (%.2f%%)\n", result.FailureCount, float64(result.FailureCount)/float64(result.TotalRequests)*100)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("⏱️  Total Duration:    %v\n", result.TotalDuration)
	fmt.Printf("⚡ Requests/sec:      %.2f\n", result.RequestsPerSec)
	fmt.Printf("📈 Avg Response Time: %v\n", result.AvgResponseTime)
	fmt.Printf("⬇️  Min Response Time: %v\n", result.MinResponseTime)
	fmt.Printf("⬆️  Max Response Time: %v\n", result.MaxResponseTime)

	if len(result.Errors) > 0 {
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Println("❌ Errors:")
		for errMsg, count := range result.Errors {
			fmt.Printf("   • %s: %d times\n", errMsg, count)
		}
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

func main() {
	base := flag.String("base", "http://localhost:3000", "bulk-api base URL")
	secret := flag.String("secret", "", "WORKER_SECRET of the target")
	requests := flag.Int("requests", 100, "number of /send-bulk requests")
	concurrency := flag.Int("concurrency", 10, "concurrent requests")
	recipients := flag.Int("recipients", 1, "phone numbers per request; more than one batch paces sync mode")
	flag.Parse()

	if err := checkBaseURL(*base); err != nil {
		fmt.Printf("❌ Error: %v\n", err)
		os.Exit(2)
	}

	fmt.Println("🔍 Checking if server is running...")
	resp, err := http.Get(*base + "/health")
	if err != nil {
		fmt.Printf("❌ Error: Cannot connect to server at %s\n", *base)
		fmt.Println("💡 Make sure bulk-api is running against mock-wasender")
		return
	}
	resp.Body.Close()
	fmt.Println("✅ Server is running")

	result := runLoadTest(target{
		url:        *base + "/send-bulk",
		secret:     *secret,
		recipients: max(*recipients, 1),
	}, *requests, max(*concurrency, 1))
	printResults(result)
}

// checkBaseURL rejects a -base value that http.NewRequest could not use.
func checkBaseURL(base string) error {
	u, err := url.ParseRequestURI(base)
	if err != nil {
		return fmt.Errorf("invalid -base %q: %w", base, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid -base %q: want http(s)://host[:port]", base)
	}
	return nil
}
