package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sync_cycles_total",
		Help: "Завершённые циклы синхронизации по результату.",
	}, []string{"result"})

	SyncedItems = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_synced_items_total",
		Help: "Успешно синхронизированные записи.",
	})

	SyncErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_sync_errors_total",
		Help: "Ошибки на отдельных записях за все циклы.",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pos_sync_queue_depth",
		Help: "Текущая глубина очереди синхронизации.",
	})

	NetworkOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pos_network_online",
		Help: "1 — сеть есть, 0 — офлайн.",
	})
)
