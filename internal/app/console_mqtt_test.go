package app

import (
	"bytes"
	"testing"

	"go.viam.com/test"
)

func TestPrintFix(t *testing.T) {
	var buf bytes.Buffer
	err := printFix(&buf, []byte(`{"lat":48.07038,"lon":-11.31,"time":"12:35:19"}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldEqual, "[GPS ]  time=12:35:19 lat=48.070380 lon=-11.310000\n")
}

func TestPrintFixWithoutTime(t *testing.T) {
	var buf bytes.Buffer
	err := printFix(&buf, []byte(`{"lat":1.5,"lon":2}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldContainSubstring, "time=--:--:--")
}

func TestPrintFixBadPayload(t *testing.T) {
	var buf bytes.Buffer
	err := printFix(&buf, []byte(`not json`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, buf.Len(), test.ShouldEqual, 0)
}
