package monitoring

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// PrometheusHandler returns an http.Handler that serves Prometheus text format metrics.
// This avoids pulling in the full prometheus/client_golang dependency.
// Mount it at "/metrics" in your HTTP server.
func (m *Monitor) PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(m.metrics.StartTime).Seconds()

		// Write metrics in Prometheus exposition format
		lines := []struct {
			name string
			help string
			typ  string
			val  interface{}
		}{
			// Request counters
			{"sentinelgate_requests_total", "Total number of requests processed", "counter", atomic.LoadUint64(&m.metrics.RequestsTotal)},
			{"sentinelgate_requests_success_total", "Total successful requests", "counter", atomic.LoadUint64(&m.metrics.RequestsSuccess)},
			{"sentinelgate_requests_failed_total", "Total failed requests", "counter", atomic.LoadUint64(&m.metrics.RequestsFailed)},

			// Tool call counters
			{"sentinelgate_step_executions_total", "Total tool calls executed", "counter", atomic.LoadUint64(&m.metrics.StepExecutionsTotal)},
			{"sentinelgate_step_executions_success_total", "Total successful tool calls", "counter", atomic.LoadUint64(&m.metrics.StepExecutionsSuccess)},
			{"sentinelgate_step_executions_failed_total", "Total failed tool calls", "counter", atomic.LoadUint64(&m.metrics.StepExecutionsFailed)},

			// Model counters
			{"sentinelgate_planner_calls_total", "Total LLM model calls", "counter", atomic.LoadUint64(&m.metrics.PlannerCallsTotal)},
			{"sentinelgate_model_tokens_used_total", "Total tokens consumed", "counter", atomic.LoadUint64(&m.metrics.ModelTokensUsed)},

			// Errors
			{"sentinelgate_errors_total", "Total errors encountered", "counter", atomic.LoadUint64(&m.metrics.ErrorsTotal)},

			// Gauges
			{"sentinelgate_active_sessions", "Number of active sessions", "gauge", atomic.LoadInt64(&m.metrics.ActiveSessions)},
			{"sentinelgate_uptime_seconds", "Process uptime in seconds", "gauge", uptime},

			// Runtime metrics
			{"sentinelgate_memory_alloc_bytes", "Current memory allocation in bytes", "gauge", memStats.Alloc},
			{"sentinelgate_memory_sys_bytes", "Total memory obtained from OS", "gauge", memStats.Sys},
			{"sentinelgate_goroutines", "Number of goroutines", "gauge", runtime.NumGoroutine()},
			{"sentinelgate_gc_pause_total_ns", "Total GC pause time in nanoseconds", "counter", memStats.PauseTotalNs},
			{"sentinelgate_gc_cycles_total", "Total number of completed GC cycles", "counter", memStats.NumGC},
		}

		for _, l := range lines {
			fmt.Fprintf(w, "# HELP %s %s\n", l.name, l.help)
			fmt.Fprintf(w, "# TYPE %s %s\n", l.name, l.typ)
			switch v := l.val.(type) {
			case uint64:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case int64:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case int:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case float64:
				fmt.Fprintf(w, "%s %f\n", l.name, v)
			case uint32:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			}
			fmt.Fprintln(w)
		}

		// Latency summaries
		reqCount := atomic.LoadUint64(&m.metrics.RequestLatencyCount)
		if reqCount > 0 {
			avgMs := float64(atomic.LoadUint64(&m.metrics.RequestLatencySum)) / float64(reqCount) / 1e6
			fmt.Fprintf(w, "# HELP sentinelgate_request_latency_avg_ms Average request latency in milliseconds\n")
			fmt.Fprintf(w, "# TYPE sentinelgate_request_latency_avg_ms gauge\n")
			fmt.Fprintf(w, "sentinelgate_request_latency_avg_ms %f\n\n", avgMs)
		}

		toolCount := atomic.LoadUint64(&m.metrics.StepLatencyCount)
		if toolCount > 0 {
			avgMs := float64(atomic.LoadUint64(&m.metrics.StepLatencySum)) / float64(toolCount) / 1e6
			fmt.Fprintf(w, "# HELP sentinelgate_step_latency_avg_ms Average tool execution latency in milliseconds\n")
			fmt.Fprintf(w, "# TYPE sentinelgate_step_latency_avg_ms gauge\n")
			fmt.Fprintf(w, "sentinelgate_step_latency_avg_ms %f\n\n", avgMs)
		}
	})
}
