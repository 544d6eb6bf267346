// Package msg is the in-process broker that carries run events from the
// pipeline to the event publishers.
package msg

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Topic names a class of run events.
type Topic int

const (
	// Progress marks a finished pipeline stage.
	Progress Topic = iota
	// Warning carries a condition the run worked around, such as an applied
	// fallback or an electricity bus without links.
	Warning
	Finished
	Failed
)

func (t Topic) String() string {
	switch t {
	case Progress:
		return "progress"
	case Warning:
		return "warning"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("topic(%d)", int(t))
}

// Topics lists every topic.
func Topics() []Topic {
	return []Topic{Progress, Warning, Finished, Failed}
}

// Publisher is an interface for objects that allow subscription to their events
type Publisher interface {
	Subscribe(uuid.UUID, Topic) (<-chan Msg, error)
	Unsubscribe(uuid.UUID)
}

// Msg is one published event.
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factory function
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID
func (v Msg) PID() uuid.UUID {
	return v.sender
}

// Topic returns the topic the message was published on
func (v Msg) Topic() Topic {
	return v.topic
}

// Payload returns the message data
func (v Msg) Payload() interface{} {
	return v.payload
}

// Event is the payload of every pipeline message.
type Event struct {
	RunID    string    `json:"run_id" bson:"run_id"`
	Scenario string    `json:"scenario" bson:"scenario"`
	Stage    string    `json:"stage" bson:"stage"`
	Detail   string    `json:"detail,omitempty" bson:"detail,omitempty"`
	Count    int       `json:"count" bson:"count"`
	Time     time.Time `json:"time" bson:"time"`
}

// Buffer is the capacity of every subscription channel.
const Buffer = 64

// PubSub fans messages out to the subscribers of their topic. Publish never
// blocks: a message for a full subscriber is dropped and counted.
type PubSub struct {
	pid     uuid.UUID
	mux     sync.Mutex
	subs    map[Topic]map[uuid.UUID]chan Msg
	dropped int
	closed  bool
}

// NewPublisher returns a broker publishing as pid.
func NewPublisher(pid uuid.UUID) *PubSub {
	return &PubSub{pid: pid, subs: make(map[Topic]map[uuid.UUID]chan Msg)}
}

// PID returns the publisher's PID
func (p *PubSub) PID() uuid.UUID {
	return p.pid
}

// Subscribe returns a channel receiving every message on topic.
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) (<-chan Msg, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return nil, fmt.Errorf("publisher %s is closed", p.pid)
	}
	if p.subs[topic] == nil {
		p.subs[topic] = make(map[uuid.UUID]chan Msg)
	}
	if _, ok := p.subs[topic][pid]; ok {
		return nil, fmt.Errorf("%s already subscribed to %s", pid, topic)
	}
	ch := make(chan Msg, Buffer)
	p.subs[topic][pid] = ch
	return ch, nil
}

// Unsubscribe closes every channel held by pid.
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, subs := range p.subs {
		if ch, ok := subs[pid]; ok {
			close(ch)
			delete(subs, pid)
		}
	}
}

// Publish delivers payload to the subscribers of topic.
func (p *PubSub) Publish(topic Topic, payload interface{}) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return
	}
	m := New(p.pid, topic, payload)
	for _, ch := range p.subs[topic] {
		select {
		case ch <- m:
		default:
			p.dropped++
		}
	}
}

// Dropped is the number of messages lost to full subscribers.
func (p *PubSub) Dropped() int {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.dropped
}

// Close closes every subscription. Later publishes are ignored.
func (p *PubSub) Close() {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, subs := range p.subs {
		for pid, ch := range subs {
			close(ch)
			delete(subs, pid)
		}
	}
}

// Merge forwards every channel into one, closed once all inputs are closed.
func Merge(chs ...<-chan Msg) <-chan Msg {
	out := make(chan Msg, Buffer)
	var wg sync.WaitGroup
	wg.Add(len(chs))
	for _, ch := range chs {
		go func(ch <-chan Msg) {
			defer wg.Done()
			for m := range ch {
				out <- m
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// SubscribeAll subscribes pid to every topic and merges the channels.
func SubscribeAll(p Publisher, pid uuid.UUID) (<-chan Msg, error) {
	var chs []<-chan Msg
	for _, topic := range Topics() {
		ch, err := p.Subscribe(pid, topic)
		if err != nil {
			p.Unsubscribe(pid)
			return nil, err
		}
		chs = append(chs, ch)
	}
	return Merge(chs...), nil
}
