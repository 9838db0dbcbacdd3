package forward

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/relabs-tech/gps_forwarder/internal/gps"
	"github.com/relabs-tech/gps_forwarder/internal/logger"
)

type collector struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (c *collector) add(o Outcome) {
	c.mu.Lock()
	c.outcomes = append(c.outcomes, o)
	c.mu.Unlock()
}

func (c *collector) all() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Outcome(nil), c.outcomes...)
}

func TestEncodeForm(t *testing.T) {
	body := EncodeForm(gps.Fix{Latitude: 48.07038, Longitude: -11.31})
	test.That(t, body, test.ShouldEqual, "latitude=48.070380&longitude=-11.310000")
}

func TestHTTPForwarderPostsForm(t *testing.T) {
	type seen struct{ ct, lat, lon, reqID, method string }
	got := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		got <- seen{
			ct:     r.Header.Get("Content-Type"),
			lat:    r.PostForm.Get("latitude"),
			lon:    r.PostForm.Get("longitude"),
			reqID:  r.Header.Get("X-Request-ID"),
			method: r.Method,
		}
	}))
	defer srv.Close()

	f, err := NewHTTPForwarder(HTTPConfig{URL: srv.URL}, logger.Nop())
	test.That(t, err, test.ShouldBeNil)

	var c collector
	f.Submit(gps.Fix{Latitude: -33.426618, Longitude: 117.513858}, c.add)
	f.Wait()

	s := <-got
	test.That(t, s.method, test.ShouldEqual, http.MethodPost)
	test.That(t, s.ct, test.ShouldEqual, "application/x-www-form-urlencoded")
	test.That(t, s.lat, test.ShouldEqual, "-33.426618")
	test.That(t, s.lon, test.ShouldEqual, "117.513858")

	outs := c.all()
	test.That(t, outs, test.ShouldHaveLength, 1)
	test.That(t, outs[0].Delivered(), test.ShouldBeTrue)
	test.That(t, outs[0].ID.String(), test.ShouldEqual, s.reqID)
	test.That(t, outs[0].Destination, test.ShouldEqual, srv.URL)
}

func TestHTTPForwarderDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{}, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		<-release
	}))
	defer srv.Close()

	f, err := NewHTTPForwarder(HTTPConfig{URL: srv.URL}, logger.Nop())
	test.That(t, err, test.ShouldBeNil)

	var c collector
	f.Submit(gps.Fix{Latitude: 1}, c.add)
	f.Submit(gps.Fix{Latitude: 2}, c.add)

	// both requests are in flight and neither has reported
	<-arrived
	<-arrived
	test.That(t, c.all(), test.ShouldBeEmpty)

	close(release)
	f.Wait()

	outs := c.all()
	test.That(t, outs, test.ShouldHaveLength, 2)
	test.That(t, outs[0].ID, test.ShouldNotEqual, outs[1].ID)
	for _, o := range outs {
		test.That(t, o.Delivered(), test.ShouldBeTrue)
	}
}

func TestHTTPForwarderTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	f, err := NewHTTPForwarder(HTTPConfig{URL: url, Timeout: time.Second}, logger.Nop())
	test.That(t, err, test.ShouldBeNil)

	var c collector
	f.Submit(gps.Fix{Latitude: 1}, c.add)
	f.Submit(gps.Fix{Latitude: 2}, c.add)
	f.Wait()

	outs := c.all()
	test.That(t, outs, test.ShouldHaveLength, 2)
	for _, o := range outs {
		test.That(t, o.Delivered(), test.ShouldBeFalse)
		test.That(t, errors.Is(o.Err, ErrTransport), test.ShouldBeTrue)
	}
}

func TestHTTPForwarderStatusFailureThenRecovery(t *testing.T) {
	var mu sync.Mutex
	fail := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	f, err := NewHTTPForwarder(HTTPConfig{URL: srv.URL}, logger.Nop())
	test.That(t, err, test.ShouldBeNil)

	var c collector
	f.Submit(gps.Fix{Latitude: 1}, c.add)
	f.Wait()

	mu.Lock()
	fail = false
	mu.Unlock()

	f.Submit(gps.Fix{Latitude: 2}, c.add)
	f.Wait()

	outs := c.all()
	test.That(t, outs, test.ShouldHaveLength, 2)
	test.That(t, errors.Is(outs[0].Err, ErrStatus), test.ShouldBeTrue)
	test.That(t, outs[1].Delivered(), test.ShouldBeTrue)
}

func TestNewHTTPForwarderValidatesURL(t *testing.T) {
	_, err := NewHTTPForwarder(HTTPConfig{URL: "ftp://example.com"}, logger.Nop())
	test.That(t, err, test.ShouldNotBeNil)

	f, err := NewHTTPForwarder(HTTPConfig{}, logger.Nop())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.URL(), test.ShouldEqual, DefaultURL)
}
