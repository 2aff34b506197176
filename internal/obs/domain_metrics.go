package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BillsCreatedTotal counts finalized bills by payment mode.
	BillsCreatedTotal *prometheus.CounterVec
	// PaymentsReceivedTotal counts credit installment outcomes.
	PaymentsReceivedTotal *prometheus.CounterVec
	// ReturnsCreatedTotal counts processed returns by kind.
	ReturnsCreatedTotal *prometheus.CounterVec
	// CashbookCacheTotal tracks closing-balance cache hits and misses.
	CashbookCacheTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BillsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bills_created_total",
			Help:      "Count of finalized bills by payment mode.",
		}, []string{"mode"})
		PaymentsReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_received_total",
			Help:      "Count of credit installment attempts by mode and outcome.",
		}, []string{"mode", "result"})
		ReturnsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "returns_created_total",
			Help:      "Count of processed returns by kind.",
		}, []string{"kind"})
		CashbookCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cashbook_cache_total",
			Help:      "Closing-balance cache lookups by result.",
		}, []string{"result"})

		mustRegisterCollector(reg, BillsCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BillsCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentsReceivedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentsReceivedTotal = v
			}
		})
		mustRegisterCollector(reg, ReturnsCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReturnsCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, CashbookCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CashbookCacheTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
