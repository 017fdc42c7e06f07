package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

type GroupConfig struct {
	Brokers        []string
	GroupID        string
	ClientID       string
	OffsetOldest   bool
	SessionTimeout time.Duration
}

func NewGroup(gc GroupConfig) (sarama.ConsumerGroup, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_6_0_0
	if gc.ClientID != "" {
		cfg.ClientID = gc.ClientID
	}
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	if gc.OffsetOldest {
		// Missed gateway pushes must still settle orders after downtime.
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	if gc.SessionTimeout > 0 {
		cfg.Consumer.Group.Session.Timeout = gc.SessionTimeout
	}
	cfg.Net.DialTimeout = 5 * time.Second
	return sarama.NewConsumerGroup(gc.Brokers, gc.GroupID, cfg)
}
