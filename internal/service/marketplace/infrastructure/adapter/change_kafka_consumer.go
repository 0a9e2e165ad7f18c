// internal/service/marketplace/infrastructure/adapter/change_kafka_consumer.go
package adapter

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"agrilink/internal/pkg/logger"
	"agrilink/internal/service/marketplace/domain"
)

// ChangeConsumerAdapter 是一个驱动适配器：监听变更主题，
// 把事件交给本地处理函数（推送网关用它喂 websocket Hub）。
type ChangeConsumerAdapter struct {
	reader  *kafka.Reader
	handler func(event domain.ChangeEvent)
	wg      sync.WaitGroup
	stopped bool
}

// NewChangeConsumerAdapter 创建消费适配器。
func NewChangeConsumerAdapter(reader *kafka.Reader, handler func(event domain.ChangeEvent)) *ChangeConsumerAdapter {
	return &ChangeConsumerAdapter{reader: reader, handler: handler}
}

// Start 开始监听变更主题。这是一个长期运行的方法。
func (a *ChangeConsumerAdapter) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(nil).Info().
			Str("topic", a.reader.Config().Topic).
			Msg("change consumer started")
		for {
			if a.stopped {
				return
			}
			// 用 FetchMessage 而不是 ReadMessage，便于控制退出和提交
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(nil).Info().Msg("change consumer shutting down")
					return
				}
				logger.Ctx(nil).Error().Err(err).Msg("could not read change event, retrying")
				time.Sleep(1 * time.Second) // 避免快速失败循环
				continue
			}

			a.processMessage(msg)

			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(nil).Error().Err(err).Msg("failed to commit change event offset")
			}
		}
	}()
}

// Stop 优雅地停止消费者。
func (a *ChangeConsumerAdapter) Stop() {
	a.stopped = true
	a.reader.Close()
	a.wg.Wait()
	logger.Ctx(nil).Info().Msg("change consumer stopped")
}

func (a *ChangeConsumerAdapter) processMessage(msg kafka.Message) {
	var event domain.ChangeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Ctx(nil).Error().Err(err).Msg("failed to unmarshal change event, message skipped")
		return
	}
	a.handler(event)
}
