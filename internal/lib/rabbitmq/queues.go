package rabbitmq

const (
	// AnalyticsExchange exchange событий аналитики
	AnalyticsExchange = "analytics"
	// AnalyticsRoutingKey ключ маршрутизации событий
	AnalyticsRoutingKey = "event"
	// AnalyticsQueue очередь, которую читает analytics-consumer
	AnalyticsQueue = "analytics.events"

	prefetch = 10
)

// QueueConfig очередь и ключ, которым она привязана к exchange
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetAnalyticsQueues возвращает очереди exchange аналитики
func GetAnalyticsQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: AnalyticsQueue, RoutingKey: AnalyticsRoutingKey},
	}
}
