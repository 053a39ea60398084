package observability

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"regulon/internal/anneal"
)

// SearchCollector exports annealing progress to Prometheus. It implements
// anneal.Observer.
type SearchCollector struct {
	gatherer prometheus.Gatherer

	Steps        *prometheus.CounterVec
	Searches     *prometheus.CounterVec
	Probability  prometheus.Histogram
	StepsPerRun  prometheus.Histogram
	Penalty      prometheus.Gauge
	Temperature  prometheus.Gauge
	BestPenalty  prometheus.Gauge
	lastSolution prometheus.Gauge
}

var _ anneal.Observer = (*SearchCollector)(nil)

// NewSearchCollector registers search metrics against reg, defaulting to the
// global registry when nil. Re-registering returns the existing collectors.
func NewSearchCollector(reg prometheus.Registerer) (*SearchCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	steps, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regulon_search_steps_total",
		Help: "Schedule steps evaluated, labeled by whether the neighbour was accepted.",
	}, []string{"accepted"}), "regulon_search_steps_total")
	if err != nil {
		return nil, err
	}
	searches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regulon_searches_total",
		Help: "Finished searches, labeled by outcome.",
	}, []string{"outcome"}), "regulon_searches_total")
	if err != nil {
		return nil, err
	}
	probability, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "regulon_search_acceptance_probability",
		Help:    "Acceptance probability of uphill moves.",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	}), "regulon_search_acceptance_probability")
	if err != nil {
		return nil, err
	}
	perRun, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "regulon_search_steps_per_run",
		Help:    "Schedule steps used by each finished search.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}), "regulon_search_steps_per_run")
	if err != nil {
		return nil, err
	}
	penalty, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "regulon_search_penalty",
		Help: "Penalty of the current state at the latest step.",
	}), "regulon_search_penalty")
	if err != nil {
		return nil, err
	}
	temperature, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "regulon_search_temperature",
		Help: "Temperature at the latest step.",
	}), "regulon_search_temperature")
	if err != nil {
		return nil, err
	}
	best, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "regulon_search_final_penalty",
		Help: "Penalty reported by the latest finished search.",
	}), "regulon_search_final_penalty")
	if err != nil {
		return nil, err
	}
	solved, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "regulon_search_solved",
		Help: "1 when the latest finished search was solved.",
	}), "regulon_search_solved")
	if err != nil {
		return nil, err
	}

	return &SearchCollector{
		gatherer:     gatherer,
		Steps:        steps,
		Searches:     searches,
		Probability:  probability,
		StepsPerRun:  perRun,
		Penalty:      penalty,
		Temperature:  temperature,
		BestPenalty:  best,
		lastSolution: solved,
	}, nil
}

func (c *SearchCollector) ObserveStep(step anneal.Step) {
	if c == nil {
		return
	}
	c.Steps.WithLabelValues(strconv.FormatBool(step.Accepted)).Inc()
	c.Penalty.Set(step.Penalty)
	c.Temperature.Set(step.Temperature)
	if step.Moved >= 0 && step.Probability < 1 {
		c.Probability.Observe(step.Probability)
	}
}

func (c *SearchCollector) ObserveResult(res anneal.Result) {
	if c == nil {
		return
	}
	outcome := "unsolved"
	solved := 0.0
	if res.Solved {
		outcome, solved = "solved", 1
	}
	c.Searches.WithLabelValues(outcome).Inc()
	c.StepsPerRun.Observe(float64(res.Steps))
	c.BestPenalty.Set(res.Penalty)
	c.lastSolution.Set(solved)
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SearchCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
