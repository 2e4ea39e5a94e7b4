package collab

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// KafkaDispatcher：本地有界队列 + worker 异步发送 + 有限重试
// 目标：
// - 提交临界区只负责入队（Publish 非阻塞，队列满直接丢）
// - Kafka 短暂抖动时靠队列吸收，后台慢慢补发
// - 不要求每个事件都必达，协作事件允许降级丢弃
type KafkaDispatcher struct {
	producer sarama.SyncProducer
	topic    string

	queue chan SessionOpEvent

	// sem 限制并发的 SendMessage 数量
	sem *SemaphoreControl

	workers     int
	maxRetry    int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

type KafkaDispatcherOptions struct {
	QueueSize   int
	Workers     int
	MaxRetry    int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func NewKafkaDispatcher(producer sarama.SyncProducer, topic string, sem *SemaphoreControl, opt KafkaDispatcherOptions) *KafkaDispatcher {
	d := &KafkaDispatcher{
		producer:    producer,
		topic:       topic,
		queue:       make(chan SessionOpEvent, opt.QueueSize),
		sem:         sem,
		workers:     opt.Workers,
		maxRetry:    opt.MaxRetry,
		baseBackoff: opt.BaseBackoff,
		maxBackoff:  opt.MaxBackoff,
	}
	d.Start()
	return d
}

// Publish 在提交链路里调用：入不了队就丢，绝不等待
func (d *KafkaDispatcher) Publish(evt OperationAppliedEvent) {
	out := SessionOpEvent{
		EventType:  "OP_APPLIED",
		SessionID:  evt.SessionID,
		DocumentID: evt.DocumentID,
		Revision:   evt.Revision,
		UserID:     evt.Op.UserID,
		Op:         evt.Op,
		AppliedAt:  evt.AppliedAt,
	}
	select {
	case d.queue <- out:
	default:
		log.Printf("kafka queue full, drop event session=%s rev=%d", evt.SessionID, evt.Revision)
	}
}

func (d *KafkaDispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		go d.workerLoop(i)
	}
}

func (d *KafkaDispatcher) workerLoop(workerID int) {
	for evt := range d.queue {
		d.sendWithRetry(workerID, evt)
	}
}

func (d *KafkaDispatcher) sendWithRetry(workerID int, evt SessionOpEvent) {
	for attempt := 0; attempt <= d.maxRetry; attempt++ {
		if d.sem != nil {
			// worker 可以一直等（不在主链路上）
			_ = d.sem.Acquire(context.Background())
		}

		err := d.sendOnce(evt)

		if d.sem != nil {
			_ = d.sem.Release()
		}

		if err == nil {
			return
		}

		if attempt == d.maxRetry {
			log.Printf("kafka send failed, drop event session=%s doc=%s rev=%d worker=%d err=%v",
				evt.SessionID, evt.DocumentID, evt.Revision, workerID, err)
			return
		}

		// 指数退避
		backoff := d.baseBackoff * time.Duration(1<<attempt)
		if backoff > d.maxBackoff {
			backoff = d.maxBackoff
		}
		time.Sleep(backoff)
	}
}

func (d *KafkaDispatcher) sendOnce(evt SessionOpEvent) error {
	if d.producer == nil || d.topic == "" {
		return nil
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: d.topic,
		Key:   sarama.StringEncoder(evt.DocumentID),
		Value: sarama.ByteEncoder(b),
	}
	_, _, err = d.producer.SendMessage(msg)
	return err
}
