package forward

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.viam.com/test"

	"github.com/relabs-tech/gps_forwarder/internal/gps"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func (t *fakeToken) Wait() bool { <-t.done; return true }

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type fakePublisher struct {
	topic    string
	retained bool
	payload  []byte
	token    *fakeToken
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.topic = topic
	p.retained = retained
	p.payload = payload.([]byte)
	return p.token
}

func TestMQTTForwarderPublishesJSON(t *testing.T) {
	tok := &fakeToken{done: make(chan struct{})}
	pub := &fakePublisher{token: tok}
	m := NewMQTTForwarder(pub, "gps/fix", time.Second)

	var c collector
	m.Submit(gps.Fix{Latitude: 48.07038, Longitude: -11.31}, c.add)
	test.That(t, c.all(), test.ShouldBeEmpty)
	close(tok.done)
	m.Wait()

	test.That(t, pub.topic, test.ShouldEqual, "gps/fix")
	test.That(t, pub.retained, test.ShouldBeTrue)
	var f gps.Fix
	test.That(t, json.Unmarshal(pub.payload, &f), test.ShouldBeNil)
	test.That(t, f.Latitude, test.ShouldAlmostEqual, 48.07038, 1e-9)

	outs := c.all()
	test.That(t, outs, test.ShouldHaveLength, 1)
	test.That(t, outs[0].Delivered(), test.ShouldBeTrue)
	test.That(t, outs[0].Destination, test.ShouldEqual, "mqtt:gps/fix")
}

func TestMQTTForwarderReportsErrors(t *testing.T) {
	tok := &fakeToken{done: make(chan struct{}), err: errors.New("not connected")}
	close(tok.done)
	m := NewMQTTForwarder(&fakePublisher{token: tok}, "gps/fix", time.Second)

	var c collector
	m.Submit(gps.Fix{}, c.add)
	m.Wait()
	outs := c.all()
	test.That(t, outs, test.ShouldHaveLength, 1)
	test.That(t, errors.Is(outs[0].Err, ErrTransport), test.ShouldBeTrue)
}

func TestMQTTForwarderTimeout(t *testing.T) {
	tok := &fakeToken{done: make(chan struct{})}
	m := NewMQTTForwarder(&fakePublisher{token: tok}, "gps/fix", 10*time.Millisecond)

	var c collector
	m.Submit(gps.Fix{}, c.add)
	m.Wait()
	outs := c.all()
	test.That(t, outs, test.ShouldHaveLength, 1)
	test.That(t, outs[0].Err, test.ShouldNotBeNil)
}

func TestFanoutReportsPerMember(t *testing.T) {
	ok := &fakeToken{done: make(chan struct{})}
	close(ok.done)
	bad := &fakeToken{done: make(chan struct{}), err: errors.New("boom")}
	close(bad.done)

	fan := Fanout{
		NewMQTTForwarder(&fakePublisher{token: ok}, "a", time.Second),
		NewMQTTForwarder(&fakePublisher{token: bad}, "b", time.Second),
	}

	var c collector
	fan.Submit(gps.Fix{}, c.add)
	fan.Wait()

	outs := c.all()
	test.That(t, outs, test.ShouldHaveLength, 2)
	delivered := 0
	for _, o := range outs {
		if o.Delivered() {
			delivered++
		}
	}
	test.That(t, delivered, test.ShouldEqual, 1)
}
