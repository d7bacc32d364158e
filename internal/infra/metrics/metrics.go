package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	UploadsAwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uploads_awarded_total",
		Help: "Успешно начисленные загрузки",
	})
	UploadsDuplicate = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uploads_duplicate_total",
		Help: "Повторные загрузки уже известных PDF",
	})
	IntakeRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_rejected_total",
		Help: "Отклонённые вложения по причинам",
	}, []string{"reason"})
	PagesAwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pages_awarded_total",
		Help: "Суммарно начисленные страницы (кредиты)",
	})
	ScanMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scan_messages_total",
		Help: "Сообщения, просмотренные историческим сканированием",
	})
	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_send_errors_total",
		Help: "Ошибки отправки сообщений ботом",
	})

	StoreRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_request_duration_seconds",
		Help:    "Длительность запросов к хранилищу",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table", "status"})

	StoreRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_request_total",
		Help: "Количество запросов к хранилищу",
	}, []string{"operation", "table", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		UploadsAwarded,
		UploadsDuplicate,
		IntakeRejected,
		PagesAwarded,
		ScanMessages,
		BotSendErrors,
		StoreRequestDuration,
		StoreRequestTotal,
	)
}

// ObserveStoreRequest записывает длительность и статус запроса к хранилищу.
func ObserveStoreRequest(operation, table string, start time.Time, err error) {
	if operation == "" {
		operation = "unknown"
	}
	if table == "" {
		table = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	StoreRequestDuration.WithLabelValues(operation, table, status).Observe(duration)
	StoreRequestTotal.WithLabelValues(operation, table, status).Inc()
}
