// internal/service/marketplace/infrastructure/adapter/change_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"agrilink/internal/pkg/logger"
	"agrilink/internal/pkg/mq"
	"agrilink/internal/service/marketplace/domain"
)

// ChangeKafkaPublisher 是 domain.ChangePublisher 的 Kafka 实现，
// 把提交后的变更事件送出本进程，供推送网关等下游消费。
// 消息 Key 是分区键，同一分区的事件在 Kafka 内保序。
type ChangeKafkaPublisher struct {
	writer *kafka.Writer
}

// NewChangeKafkaPublisher 创建发布适配器。
func NewChangeKafkaPublisher(writer *kafka.Writer) *ChangeKafkaPublisher {
	return &ChangeKafkaPublisher{writer: writer}
}

var _ domain.ChangePublisher = (*ChangeKafkaPublisher)(nil)

// Publish 序列化事件并写入变更主题。
// 事务已经提交，这里失败只记日志指标意义上的错误，由调用方决定是否忽略。
func (p *ChangeKafkaPublisher) Publish(event domain.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal change event")
	}

	if err := mq.ProduceMessage(context.Background(), p.writer, []byte(event.Owner.String()), data); err != nil {
		logger.Ctx(nil).Error().Err(err).
			Str("owner", event.Owner.String()).
			Str("kind", string(event.Kind)).
			Msg("failed to produce change event to kafka")
		return errors.Wrap(err, "failed to produce change event")
	}
	return nil
}

// Close 关闭底层 Writer。
func (p *ChangeKafkaPublisher) Close() error {
	return p.writer.Close()
}
