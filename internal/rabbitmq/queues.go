package rabbitmq

import "github.com/magabrotheeeer/nextgig-subscriptions/internal/models"

// SubscriptionQueue очередь писем о жизненном цикле подписки.
const SubscriptionQueue = "notifications.subscription"

// QueueConfig описывает очередь и ключи, которыми она привязана к обменнику.
type QueueConfig struct {
	QueueName   string
	RoutingKeys []string
}

// NotificationQueues возвращает очереди, которые слушает отправитель уведомлений.
func NotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: SubscriptionQueue, RoutingKeys: models.LifecycleRoutingKeys},
	}
}
