package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"folio/internal/logging"
	"folio/notify"
)

type Config struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Acks    int16    `yaml:"required_acks"` // 0,1,-1
}

type driver struct {
	cfg Config
	p   sarama.AsyncProducer
}

func (d *driver) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("kafka-notify: want Config")
	}
	d.cfg = cfg

	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	var err error
	d.p, err = sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return err
	}
	go func() {
		for perr := range d.p.Errors() {
			logging.L().Warn("event publish failed",
				"topic", perr.Msg.Topic, "err", perr.Err)
		}
	}()
	return nil
}

func (d *driver) Publish(ev notify.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	d.p.Input() <- &sarama.ProducerMessage{
		Topic: d.cfg.Topic,
		Key:   sarama.StringEncoder(ev.ExecutionID),
		Value: sarama.ByteEncoder(payload),
	}
	return nil
}

func (d *driver) Close() error {
	if d.p == nil {
		return nil
	}
	return d.p.Close()
}

func init() { notify.Register("kafka", func() notify.Adapter { return &driver{} }) }
