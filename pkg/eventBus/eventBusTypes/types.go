package eventBusTypes

import (
	"context"
	"sync"
)

const (
	Event_ProposalCreated             = "proposal.created"
	Event_ProposalActivated           = "proposal.activated"
	Event_ProposalExecuted            = "proposal.executed"
	Event_ProposalRejected            = "proposal.rejected"
	Event_ProposalTerminationComplete = "proposal.termination.completed"
)

type Event struct {
	Name string
	Data any
}

type ConsumerId string

type Consumer struct {
	Id      ConsumerId
	Context context.Context
	Channel chan *Event
	// Events limits delivery to the named events, all events are delivered when empty
	Events []string
}

func (c *Consumer) wants(name string) bool {
	if len(c.Events) == 0 {
		return true
	}
	for _, e := range c.Events {
		if e == name {
			return true
		}
	}
	return false
}

type ConsumerList struct {
	mu        sync.Mutex
	consumers []*Consumer
}

func NewConsumerList() *ConsumerList {
	return &ConsumerList{
		consumers: make([]*Consumer, 0),
	}
}

func (cl *ConsumerList) Add(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.consumers = append(cl.consumers, consumer)
}

func (cl *ConsumerList) Remove(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for i, c := range cl.consumers {
		if c.Id == consumer.Id {
			cl.consumers = append(cl.consumers[:i], cl.consumers[i+1:]...)
			break
		}
	}
}

// GetFor returns a copy of the consumers subscribed to the named event.
func (cl *ConsumerList) GetFor(name string) []*Consumer {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	out := make([]*Consumer, 0, len(cl.consumers))
	for _, c := range cl.consumers {
		if c.wants(name) {
			out = append(out, c)
		}
	}
	return out
}

type IEventBus interface {
	Subscribe(consumer *Consumer)
	Unsubscribe(consumer *Consumer)
	Publish(event *Event)
	PublishProposalEvent(name string, data *ProposalEventData)
}

// ProposalEventData is the payload of every proposal.* event.
type ProposalEventData struct {
	ProposalId string
	VaultId    string
	Type       string
	Status     string
	Reason     string
}
