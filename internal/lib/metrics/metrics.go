package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics можно вызывать через nil, тогда ничего не пишется
type Metrics struct {
	requests  *prometheus.CounterVec
	latencyMS *prometheus.HistogramVec
	checkouts *prometheus.CounterVec
	payments  *prometheus.CounterVec
	txRetries *prometheus.CounterVec
	published *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		latencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by result.",
		}, []string{"result"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment attempts by result.",
		}, []string{"result"}),
		txRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_retries_total",
			Help:      "Transactions retried after a transient failure.",
		}, []string{"op"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox events handed to the broker by result.",
		}, []string{"event_type", "result"}),
	}
	reg.MustRegister(m.requests, m.latencyMS, m.checkouts, m.payments, m.txRetries, m.published)
	return m
}

// Handler отдаёт метрики из реестра по умолчанию
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware считает запросы и задержку с меткой по шаблону маршрута chi
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.latencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

func (m *Metrics) CheckoutResult(result string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(result).Inc()
}

func (m *Metrics) PaymentResult(result string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(result).Inc()
}

func (m *Metrics) TxRetry(op string) {
	if m == nil {
		return
	}
	m.txRetries.WithLabelValues(op).Inc()
}

func (m *Metrics) Published(eventType string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.published.WithLabelValues(eventType, result).Inc()
}
