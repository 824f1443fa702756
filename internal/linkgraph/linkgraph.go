// Package linkgraph computes a PageRank-style importance score over the
// internal-link graph of a completed crawl. It is a read-only aggregate
// over a Store's persisted PageRecords: no network access, no extra
// fetches, nothing beyond what the crawl already wrote down.
package linkgraph

import (
	"net/url"
	"sort"

	"github.com/mascanho/seocrawl/internal/crawl"
)

const (
	defaultDamping       = 0.85
	defaultMaxIterations = 100
	defaultTolerance     = 1e-6
)

// Score is one node's final rank, normalized so the scores across a graph
// sum to 1.0.
type Score struct {
	URL      string  `json:"url"`
	Rank     float64 `json:"rank"`
	Inbound  int     `json:"inbound_links"`
	Outbound int     `json:"outbound_links"`
}

// Graph is the directed internal-link graph built from a crawl's
// PageRecords: nodes are the FinalURLs the crawl actually visited, edges
// are InternalLinks that point at another visited node. Links to pages
// the crawl never reached (out of scope, depth-limited, robots-blocked)
// are not nodes here and are dropped from the edge set, the same way a
// search engine's link graph only ranks pages it has indexed.
type Graph struct {
	nodes []string
	index map[string]int
	out   [][]int
	in    [][]int
}

// Build indexes records into a Graph. Records with an empty FinalURL are
// skipped; duplicate FinalURLs keep the first occurrence, matching how
// the Store's domain_crawl table is keyed uniquely by URL.
func Build(records []crawl.PageRecord) *Graph {
	g := &Graph{index: make(map[string]int, len(records))}

	for _, r := range records {
		if r.FinalURL == "" {
			continue
		}
		if _, exists := g.index[r.FinalURL]; exists {
			continue
		}
		g.index[r.FinalURL] = len(g.nodes)
		g.nodes = append(g.nodes, r.FinalURL)
	}

	g.out = make([][]int, len(g.nodes))
	g.in = make([][]int, len(g.nodes))

	for _, r := range records {
		from, ok := g.index[r.FinalURL]
		if !ok {
			continue
		}
		seen := make(map[int]bool, len(r.InternalLinks))
		for _, link := range r.InternalLinks {
			target := normalizeFragment(link.URL)
			to, ok := g.index[target]
			if !ok || to == from || seen[to] {
				continue
			}
			seen[to] = true
			g.out[from] = append(g.out[from], to)
			g.in[to] = append(g.in[to], from)
		}
	}

	return g
}

// normalizeFragment strips a URL fragment so "page#section" resolves to
// the same node as "page", matching the FinalURL that a fragment-bearing
// in-page anchor ultimately points at.
func normalizeFragment(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	return u.String()
}

// NodeCount reports how many distinct crawled URLs are in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// Rank runs PageRank's power iteration to convergence (or until
// maxIterations, whichever comes first) and returns one Score per node,
// sorted by descending rank. It uses the standard PageRank damping
// factor of 0.85.
func Rank(records []crawl.PageRecord) []Score {
	return rankWithParams(records, defaultDamping, defaultMaxIterations, defaultTolerance)
}

func rankWithParams(records []crawl.PageRecord, damping float64, maxIterations int, tolerance float64) []Score {
	g := Build(records)
	n := len(g.nodes)
	if n == 0 {
		return nil
	}
	if damping <= 0 {
		damping = defaultDamping
	}

	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / float64(n)
	}

	for iter := 0; iter < maxIterations; iter++ {
		next := make([]float64, n)

		// Dangling nodes (no outbound links) distribute their rank evenly
		// across every other node, the standard PageRank treatment that
		// keeps rank from leaking out of the graph.
		var danglingMass float64
		for i, outLinks := range g.out {
			if len(outLinks) == 0 {
				danglingMass += rank[i]
			}
		}

		base := (1 - damping) / float64(n)
		danglingShare := damping * danglingMass / float64(n)
		for i := range next {
			next[i] = base + danglingShare
		}

		for from, outLinks := range g.out {
			if len(outLinks) == 0 {
				continue
			}
			share := damping * rank[from] / float64(len(outLinks))
			for _, to := range outLinks {
				next[to] += share
			}
		}

		if converged(rank, next, tolerance) {
			rank = next
			break
		}
		rank = next
	}

	scores := make([]Score, n)
	for i, nodeURL := range g.nodes {
		scores[i] = Score{
			URL:      nodeURL,
			Rank:     rank[i],
			Inbound:  len(g.in[i]),
			Outbound: len(g.out[i]),
		}
	}
	sortByRankDescending(scores)
	return scores
}

func converged(prev, next []float64, tolerance float64) bool {
	var delta float64
	for i := range prev {
		d := next[i] - prev[i]
		if d < 0 {
			d = -d
		}
		delta += d
	}
	return delta < tolerance
}

func sortByRankDescending(scores []Score) {
	sort.Slice(scores, func(i, j int) bool { return scores[i].Rank > scores[j].Rank })
}
