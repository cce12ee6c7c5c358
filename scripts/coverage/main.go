// Command coverage measures how well the extraction chains hold up against
// live product pages. It previews each URL through a running pricewatch
// API with debug enabled and reports per-field hit rates, the strategies
// that resolved them and render latency.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/pricewatch/models"
)

var (
	apiURL    = flag.String("api-url", "http://localhost:8080", "pricewatch API base URL")
	apiKey    = flag.String("api-key", "", "API key for authenticated requests")
	urlFile   = flag.String("urls", "", "file with one product URL per line (default: built-in sample)")
	runs      = flag.Int("runs", 1, "previews per URL")
	fetchMode = flag.String("fetch-mode", "auto", "auto, http or browser")
	output    = flag.String("output", "coverage-results.json", "JSON output file path")
)

var sampleURLs = []string{
	"https://www.flipkart.com/samsung-galaxy-m14-5g-smoky-teal-128-gb/p/itm0f8e4d6b0f4b5",
	"https://www.flipkart.com/boat-rockerz-450-bluetooth-headset/p/itm2f2d4c8b7c8a4",
	"https://www.flipkart.com/apple-iphone-15-black-128-gb/p/itm6ac6485515ae4",
}

var fields = []string{"title", "price", "rating", "reviews", "image"}

type runResult struct {
	URL        string                       `json:"url"`
	Run        int                          `json:"run"`
	Success    bool                         `json:"success"`
	Error      string                       `json:"error,omitempty"`
	EngineUsed string                       `json:"engine_used,omitempty"`
	TotalMs    int64                        `json:"total_ms"`
	Fields     map[string]models.FieldTrace `json:"fields,omitempty"`
}

type fieldSummary struct {
	Found      int            `json:"found"`
	Strategies map[string]int `json:"strategies"`
}

type report struct {
	Timestamp string                   `json:"timestamp"`
	APIURL    string                   `json:"api_url"`
	Runs      []runResult              `json:"runs"`
	Fields    map[string]*fieldSummary `json:"fields"`
	Engines   map[string]int           `json:"engines"`
	AvgMs     float64                  `json:"avg_ms"`
}

func main() {
	flag.Parse()

	urls, err := loadURLs(*urlFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== pricewatch extraction coverage ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("URLs:      %d x %d runs\n\n", len(urls), *runs)

	client := &http.Client{Timeout: 150 * time.Second}
	if err := checkAPI(client, *apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		os.Exit(1)
	}

	var results []runResult
	for _, u := range urls {
		for i := 1; i <= *runs; i++ {
			fmt.Printf("  %s (run %d) ... ", truncate(u, 60), i)
			rr := preview(client, u, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %s\n", rr.TotalMs, rr.EngineUsed)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			results = append(results, rr)
		}
	}

	rep := summarize(results)
	rep.Timestamp = time.Now().UTC().Format(time.RFC3339)
	rep.APIURL = *apiURL

	printTable(os.Stdout, rep, len(results))

	data, err := json.MarshalIndent(rep, "", "  ")
	if err == nil {
		err = os.WriteFile(*output, data, 0o644)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func loadURLs(path string) ([]string, error) {
	if path == "" {
		return sampleURLs, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	return urls, sc.Err()
}

func checkAPI(client *http.Client, baseURL string) error {
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func preview(client *http.Client, u string, run int) runResult {
	rr := runResult{URL: u, Run: run}

	body, _ := json.Marshal(models.PreviewRequest{URL: u, Debug: true, FetchMode: *fetchMode, Timeout: 120})
	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/extract", bytes.NewReader(body))
	if err != nil {
		rr.Error = err.Error()
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("X-API-Key", *apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var pr models.PreviewResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}
	return fromResponse(rr, &pr)
}

func fromResponse(rr runResult, pr *models.PreviewResponse) runResult {
	rr.Success = pr.Success
	rr.EngineUsed = pr.EngineUsed
	rr.TotalMs = pr.Timing.TotalMs
	if pr.Error != nil {
		rr.Error = fmt.Sprintf("[%s] %s", pr.Error.Code, pr.Error.Message)
	}
	if pr.Diagnostics != nil {
		rr.Fields = make(map[string]models.FieldTrace, len(pr.Diagnostics.Fields))
		for _, f := range pr.Diagnostics.Fields {
			rr.Fields[f.Field] = f
		}
	}
	return rr
}

func summarize(results []runResult) report {
	rep := report{
		Runs:    results,
		Fields:  make(map[string]*fieldSummary, len(fields)),
		Engines: map[string]int{},
	}
	for _, f := range fields {
		rep.Fields[f] = &fieldSummary{Strategies: map[string]int{}}
	}

	var ok int
	for _, r := range results {
		if !r.Success {
			continue
		}
		ok++
		rep.AvgMs += float64(r.TotalMs)
		rep.Engines[r.EngineUsed]++
		for name, tr := range r.Fields {
			s, known := rep.Fields[name]
			if !known || !tr.Found {
				continue
			}
			s.Found++
			s.Strategies[strategyLabel(tr)]++
		}
	}
	if ok > 0 {
		rep.AvgMs /= float64(ok)
	}
	return rep
}

func strategyLabel(tr models.FieldTrace) string {
	if tr.Selector == "" || tr.Selector == tr.Strategy {
		return tr.Strategy
	}
	return tr.Strategy + " " + tr.Selector
}

func printTable(out *os.File, rep report, total int) {
	fmt.Fprintln(out, strings.Repeat("─", 85))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Field\tHit Rate\tTop Strategy\n")
	fmt.Fprintf(w, "─────\t────────\t────────────\n")
	for _, f := range fields {
		s := rep.Fields[f]
		fmt.Fprintf(w, "%s\t%d/%d\t%s\n", f, s.Found, total, topKey(s.Strategies))
	}
	w.Flush()
	fmt.Fprintln(out, strings.Repeat("─", 85))
	fmt.Fprintf(out, "Average latency: %.0fms  Engines: %v\n", rep.AvgMs, rep.Engines)
}

// topKey returns the most frequent key, breaking ties alphabetically.
func topKey(m map[string]int) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys[0]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
