package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics глобальный контейнер метрик
type Metrics struct {
	// Метрики solve-операций
	SolveOperationsTotal *prometheus.CounterVec
	SolveDuration        *prometheus.HistogramVec
	PhaseDuration        *prometheus.HistogramVec
	CVRouteCount         *prometheus.GaugeVec
	TVRouteCount         *prometheus.GaugeVec
	ZonesVisited         *prometheus.GaugeVec
	TotalWasteCollected  *prometheus.GaugeVec

	// Метрики кэша результатов
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Системные метрики
	MemoryUsage *prometheus.GaugeVec
	Goroutines  prometheus.Gauge

	// Отслеживание solve-операций, выполняющихся прямо сейчас
	SolvesInFlight *RequestTracker

	// Информация о сервисе
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics инициализирует метрики
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		SolveOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solve_operations_total",
				Help:      "Total number of solve operations",
			},
			[]string{"algorithm", "status"},
		),

		SolveDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solve_duration_seconds",
				Help:      "Duration of solve operations",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"algorithm"},
		),

		PhaseDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "phase_duration_seconds",
				Help:      "Duration of an individual solve phase",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"algorithm", "phase"},
		),

		CVRouteCount: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cv_route_count",
				Help:      "Number of Collection Vehicle routes in the last solved solution",
			},
			[]string{"algorithm"},
		),

		TVRouteCount: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tv_route_count",
				Help:      "Number of Transportation Vehicle routes in the last solved solution",
			},
			[]string{"algorithm"},
		),

		ZonesVisited: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "zones_visited",
				Help:      "Number of distinct collection zones visited in the last solved solution",
			},
			[]string{"algorithm"},
		),

		TotalWasteCollected: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "total_waste_collected",
				Help:      "Total waste amount collected in the last solved solution",
			},
			[]string{"algorithm"},
		),

		CacheHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_hits_total",
				Help:      "Total number of solve-result cache hits",
			},
			[]string{"operation"},
		),

		CacheMissesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_misses_total",
				Help:      "Total number of solve-result cache misses",
			},
			[]string{"operation"},
		),

		// Системные метрики
		MemoryUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "memory_usage_bytes",
				Help:      "Current memory usage",
			},
			[]string{"type"},
		),

		Goroutines: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "goroutines",
				Help:      "Current number of goroutines",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}

	m.SolvesInFlight = NewRequestTracker(promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "solves_in_flight",
		Help:      "Number of solve operations currently executing",
	}))

	prometheus.MustRegister(NewRuntimeCollector(namespace, subsystem))

	defaultMetrics = m
	return m
}

// StartPhaseTimer starts a Timer that records the duration of a single
// solve phase (phase1 construction/improvement, phase2 scheduling) against
// PhaseDuration when stopped.
func (m *Metrics) StartPhaseTimer(algorithm, phase string) *Timer {
	return NewTimer(m.PhaseDuration, algorithm, phase)
}

// Get возвращает глобальные метрики
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("vrpt", "")
	}
	return defaultMetrics
}

// RecordSolveOperation записывает метрики операции решения
func (m *Metrics) RecordSolveOperation(algorithm string, success bool, duration time.Duration, cvRoutes, tvRoutes, zonesVisited int, totalWaste float64) {
	status := "success"
	if !success {
		status = "error"
	}

	m.SolveOperationsTotal.WithLabelValues(algorithm, status).Inc()
	m.SolveDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
	m.CVRouteCount.WithLabelValues(algorithm).Set(float64(cvRoutes))
	m.TVRouteCount.WithLabelValues(algorithm).Set(float64(tvRoutes))
	m.ZonesVisited.WithLabelValues(algorithm).Set(float64(zonesVisited))
	m.TotalWasteCollected.WithLabelValues(algorithm).Set(totalWaste)
}

// RecordCacheHit записывает попадание в кэш результатов
func (m *Metrics) RecordCacheHit(operation string) {
	m.CacheHitsTotal.WithLabelValues(operation).Inc()
}

// RecordCacheMiss записывает промах кэша результатов
func (m *Metrics) RecordCacheMiss(operation string) {
	m.CacheMissesTotal.WithLabelValues(operation).Inc()
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer запускает HTTP сервер для метрик
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		// Игнорируем ошибку записи - response уже отправлен
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, ошибка записи не критична
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
