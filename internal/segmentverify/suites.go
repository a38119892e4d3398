package segmentverify

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"inputguard/internal/segmentstore"
)

// SuiteHistogram counts the AEAD suite recorded in every segment header.
// Headers that fail to parse are counted under "(unparseable)".
func SuiteHistogram(store *segmentstore.Store) (map[string]int, error) {
	segs, err := store.All()
	if err != nil {
		return nil, fmt.Errorf("segmentverify: read segments: %w", err)
	}

	hist := make(map[string]int)
	for _, s := range segs {
		var h struct {
			Suite string `json:"suite"`
		}
		if err := json.Unmarshal(s.Header, &h); err != nil || h.Suite == "" {
			hist["(unparseable)"]++
			continue
		}
		hist[h.Suite]++
	}
	return hist, nil
}

// WriteSuiteHistogram renders hist to w, suites in sorted order.
func WriteSuiteHistogram(hist map[string]int, w io.Writer) {
	suites := make([]string, 0, len(hist))
	total := 0
	for s, n := range hist {
		suites = append(suites, s)
		total += n
	}
	sort.Strings(suites)
	for _, s := range suites {
		fmt.Fprintf(w, "%-12s %d\n", s, hist[s])
	}
	fmt.Fprintf(w, "%-12s %d\n", "total", total)
}
