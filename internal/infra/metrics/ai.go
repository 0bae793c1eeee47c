package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		exchangeTokens,
		streamDurationSec,
		quotaBlocks,
		streamFragments,
	)
}

var (
	exchangeTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_exchange_tokens_total",
			Help: "Sum of metered tokens per model, split by counting method.",
		},
		[]string{"model", "estimated"},
	)

	streamDurationSec = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_stream_duration_seconds",
			Help:    "End-to-end send-message duration distribution.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32, 60, 120},
		},
		[]string{"model"},
	)

	quotaBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_quota_blocks_total",
			Help: "Sends rejected at the token-quota gate per model.",
		},
		[]string{"model"},
	)

	streamFragments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_stream_fragments_total",
			Help: "Completion fragments delivered to callers per model.",
		},
		[]string{"model"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func ObserveExchangeTokens(model string, tokens int, estimated bool) {
	exchangeTokens.WithLabelValues(norm(model), strconv.FormatBool(estimated)).Add(float64(tokens))
}

func ObserveStreamDuration(model string, d time.Duration) {
	streamDurationSec.WithLabelValues(norm(model)).Observe(d.Seconds())
}

func QuotaBlocked(model string) {
	quotaBlocks.WithLabelValues(norm(model)).Inc()
}

func AddStreamFragments(model string, n int) {
	streamFragments.WithLabelValues(norm(model)).Add(float64(n))
}
