package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-testfloat/types"
)

const (
	MetricsNamespace = "testfloat"

	ResultPass = "pass"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	casesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "cases_total",
		Help:      "Count of completed test cases",
	}, []string{
		"op",
		"result",
	})

	caseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "case_duration_seconds",
		Help:      "Wall time of a test case, generator start to consumer exit",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{
		"op",
	})

	runStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_status",
		Help:      "Exit status of a finished run",
	}, []string{
		"run_id",
		"result",
	})

	runCases = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_cases",
		Help:      "Test cases of a finished run by outcome",
	}, []string{
		"run_id",
		"outcome",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// CaseResultLabel is "pass" or the failure kind of the case.
func CaseResultLabel(cr *types.CaseResult) string {
	if cr.Passed() {
		return ResultPass
	}
	if cr.Failure == types.FailureNone {
		return string(types.FailureMismatch)
	}
	return string(cr.Failure)
}

func RecordCase(op types.Operation, result string, duration time.Duration) {
	if Debug {
		log.Debug("metric inc",
			"m", "cases_total",
			"op", op,
			"result", result)
	}
	casesTotal.WithLabelValues(string(op), result).Inc()
	caseDuration.WithLabelValues(string(op)).Observe(duration.Seconds())
}

func RecordRun(runID string, result string, status int, passed int, failed int, skipped int) {
	runStatus.WithLabelValues(runID, result).Set(float64(status))
	runCases.WithLabelValues(runID, "passed").Set(float64(passed))
	runCases.WithLabelValues(runID, "failed").Set(float64(failed))
	runCases.WithLabelValues(runID, "skipped").Set(float64(skipped))
}
