package enrich

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/helvetic-data/healthdir-crawler/internal/metrics"
	"github.com/helvetic-data/healthdir-crawler/internal/ratelimit"
)

const recentResolutions = 5

// Candidate is one provider whose website may need resolving.
type Candidate struct {
	Name    string
	City    string
	Website string
}

// Resolution is the outcome for one provider.
type Resolution struct {
	Name     string
	Website  string
	Referral bool
	Keywords []string
}

// Summary counts what a resolve run did.
type Summary struct {
	Resolved int
	Skipped  int
	Failed   int
}

var resolvedHeader = []string{"name", "website", "referral", "keywords"}

// Resolver fans candidates out over a worker pool, resolves each one's
// website and appends results to a CSV file. Output appends are
// serialized through a single mutex; names already present in the
// output are skipped, so reruns resume instead of duplicating. A nil
// checker disables the referral check.
type Resolver struct {
	search  *SearchClient
	checker *ReferralChecker
	limiter *ratelimit.Limiter
	workers int
	logger  *zap.Logger
	recent  *recentRing
}

func NewResolver(search *SearchClient, checker *ReferralChecker, limiter *ratelimit.Limiter, workers int, logger *zap.Logger) *Resolver {
	if workers <= 0 {
		workers = 10
	}
	return &Resolver{
		search:  search,
		checker: checker,
		limiter: limiter,
		workers: workers,
		logger:  logger,
		recent:  newRecentRing(recentResolutions),
	}
}

// Recent returns the latest resolutions for status reporting.
func (r *Resolver) Recent() []Resolution { return r.recent.snapshot() }

// Run processes candidates and appends resolutions to outPath. A
// canceled context stops feeding workers and returns the partial
// summary with ctx's error; rows already written stay on disk.
func (r *Resolver) Run(ctx context.Context, candidates []Candidate, outPath string) (Summary, error) {
	seen, err := loadResolvedNames(outPath)
	if err != nil {
		return Summary{}, err
	}

	f, err := os.OpenFile(outPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return Summary{}, fmt.Errorf("open %s: %w", outPath, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)

	var mu sync.Mutex
	info, err := f.Stat()
	if err != nil {
		return Summary{}, fmt.Errorf("stat %s: %w", outPath, err)
	}
	if info.Size() == 0 {
		if err := w.Write(resolvedHeader); err != nil {
			return Summary{}, fmt.Errorf("write header: %w", err)
		}
		w.Flush()
	}

	var (
		summary Summary
		wg      sync.WaitGroup
		work    = make(chan Candidate)
	)
	appendRow := func(res Resolution) error {
		mu.Lock()
		defer mu.Unlock()
		if err := w.Write([]string{
			res.Name, res.Website,
			strconv.FormatBool(res.Referral),
			strings.Join(res.Keywords, "; "),
		}); err != nil {
			return err
		}
		w.Flush()
		return w.Error()
	}
	count := func(field *int) {
		mu.Lock()
		*field++
		mu.Unlock()
	}

	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range work {
				switch outcome := r.resolveOne(ctx, c, appendRow); outcome {
				case "resolved":
					count(&summary.Resolved)
				case "skipped":
					count(&summary.Skipped)
				default:
					count(&summary.Failed)
				}
			}
		}()
	}

feed:
	for _, c := range candidates {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		mu.Lock()
		dup := seen[name]
		seen[name] = true
		mu.Unlock()
		if dup {
			count(&summary.Skipped)
			continue
		}
		select {
		case <-ctx.Done():
			break feed
		case work <- c:
		}
	}
	close(work)
	wg.Wait()

	r.logger.Info("resolve run finished",
		zap.Int("resolved", summary.Resolved),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return summary, ctx.Err()
}

func (r *Resolver) resolveOne(ctx context.Context, c Candidate, appendRow func(Resolution) error) string {
	if ctx.Err() != nil {
		return "failed"
	}

	site := strings.TrimSpace(c.Website)
	if site == "" || r.search.IsBanned(site) {
		found, err := r.search.TopResult(ctx, Query(c.Name, c.City))
		if err != nil {
			r.logger.Warn("website search failed", zap.String("name", c.Name), zap.Error(err))
			metrics.ObserveResolve("failed")
			return "failed"
		}
		site = found
	}
	if site == "" {
		r.logger.Debug("no website found", zap.String("name", c.Name))
		metrics.ObserveResolve("not_found")
		return "skipped"
	}

	res := Resolution{Name: c.Name, Website: site}
	if r.checker != nil {
		if err := r.limiter.Wait(ctx, site); err != nil {
			return "failed"
		}
		res.Keywords = r.checker.FindKeywords(ctx, site)
		res.Referral = len(res.Keywords) > 0
	}
	if err := appendRow(res); err != nil {
		r.logger.Error("write resolution", zap.String("name", c.Name), zap.Error(err))
		return "failed"
	}
	r.recent.add(res)
	metrics.ObserveResolve("resolved")
	return "resolved"
}

// LoadCandidates reads a standardized dataset and returns its providers
// as resolve candidates. Column positions come from the header row.
func LoadCandidates(path string) ([]Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[h] = i
	}
	nameCol, ok := cols["name"]
	if !ok {
		return nil, fmt.Errorf("%s has no name column", path)
	}
	cityCol, hasCity := cols["city"]
	siteCol, hasSite := cols["website"]

	var out []Candidate
	for {
		row, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if len(row) <= nameCol || strings.TrimSpace(row[nameCol]) == "" {
			continue
		}
		c := Candidate{Name: row[nameCol]}
		if hasCity && len(row) > cityCol {
			c.City = row[cityCol]
		}
		if hasSite && len(row) > siteCol {
			c.Website = row[siteCol]
		}
		out = append(out, c)
	}
}

func loadResolvedNames(path string) (map[string]bool, error) {
	names := make(map[string]bool)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return names, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return names, nil
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == resolvedHeader[0] {
				continue
			}
		}
		if len(row) > 0 && strings.TrimSpace(row[0]) != "" {
			names[strings.TrimSpace(row[0])] = true
		}
	}
}
