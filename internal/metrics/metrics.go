package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики портала
var (
	// BookingsTotal попытки бронирования по результату
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutoring_bookings_total",
			Help: "Booking attempts by result",
		},
		[]string{"result"}, // booked, conflict, invalid_slot, not_found, validation, error
	)

	// SlotComputations вычисления слотов дня, hit/miss кэша
	SlotComputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutoring_slot_computations_total",
			Help: "Per-day slot computations by cache outcome",
		},
		[]string{"cache"},
	)

	// NotificationsTotal отправленные уведомления по каналу и результату
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutoring_notifications_total",
			Help: "Notifications sent by channel and result",
		},
		[]string{"channel", "result"},
	)

	// OutboxPublished опубликованные в Kafka события
	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutoring_outbox_published_total",
			Help: "Outbox events published to Kafka",
		},
		[]string{"event_type"},
	)

	// JobRuns запуски фоновых задач
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutoring_job_runs_total",
			Help: "Background job runs by job and result",
		},
		[]string{"job", "result"},
	)

	// RequestDuration время обработки HTTP запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutoring_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
