// Package keys derives the data hash and composes the cache keys used across
// the forecast pipeline. Everything here is pure: same inputs, same outputs,
// across restarts.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"TrendDuel/internal/domain/models"
	"TrendDuel/pkg/util"
)

// DataHash fingerprints a series window plus the algorithm version. The hash
// is the sole cache-invalidation key: any change to the window or the version
// changes it. term narrows the hash to one term's values; empty term covers
// all terms. Map iteration order is canonicalized away by sorting.
func DataHash(term string, window []models.SeriesPoint, algorithmVersion string) string {
	var b strings.Builder
	b.WriteString("v=")
	b.WriteString(algorithmVersion)
	b.WriteString(";term=")
	b.WriteString(term)

	for _, p := range window {
		b.WriteString(";")
		b.WriteString(util.FormatDay(p.Date))
		b.WriteString("=")

		if term != "" {
			if v, ok := p.Values[term]; ok {
				b.WriteString(formatValue(v))
			}
			continue
		}

		terms := make([]string, 0, len(p.Values))
		for t := range p.Values {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		for i, t := range terms {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(t)
			b.WriteString(":")
			b.WriteString(formatValue(p.Values[t]))
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ForecastKey addresses one term's cached forecast.
func ForecastKey(slug, term, timeframe, geo, dataHash string) string {
	return fmt.Sprintf("forecast:%s:%s:%s:%s:%s", slug, term, timeframe, geo, dataHash)
}

// WarmupStatusKey addresses the cached warmup status for a comparison.
func WarmupStatusKey(slug, timeframe, geo, dataHash string) string {
	return fmt.Sprintf("warmup-status:%s:%s:%s:%s", slug, timeframe, geo, dataHash)
}

// WarmupErrorKey addresses the short-lived diagnostic error record.
func WarmupErrorKey(slug, timeframe, geo, dataHash string) string {
	return fmt.Sprintf("warmup-error:%s:%s:%s:%s", slug, timeframe, geo, dataHash)
}

// WarmupDebugKey addresses the short-lived debug correlation id.
func WarmupDebugKey(slug, timeframe, geo, dataHash string) string {
	return fmt.Sprintf("warmup-debug:%s:%s:%s:%s", slug, timeframe, geo, dataHash)
}
