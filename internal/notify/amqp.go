package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ==================== AMQP 通知器 ====================

// AMQPConfig 连接配置
type AMQPConfig struct {
	URL        string
	Exchange   string
	Queue      string
	RoutingKey string
}

// AMQPNotifier 把同步广播发往 RabbitMQ
// 声明 direct exchange + 持久化队列并绑定；消费侧由监控系统自理
type AMQPNotifier struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

// NewAMQPNotifier 建立连接并声明拓扑
func NewAMQPNotifier(cfg AMQPConfig) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("打开 channel 失败: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("声明 exchange 失败: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("声明队列失败: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("绑定队列失败: %w", err)
	}

	log.Printf("[Notify] 已连接 RabbitMQ exchange=%s queue=%s", cfg.Exchange, cfg.Queue)

	return &AMQPNotifier{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
	}, nil
}

// Notify 发布广播；任何失败只记日志
func (n *AMQPNotifier) Notify(ctx context.Context, msg Notification) {
	body, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Notify] 序列化广播失败: %v", err)
		return
	}

	err = n.channel.PublishWithContext(
		ctx,
		n.exchange,
		n.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		log.Printf("[Notify] 发布广播失败: %v", err)
	}
}

// Close 关闭连接
func (n *AMQPNotifier) Close() error {
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
