package ws

import "testing"

func TestIsPing(t *testing.T) {
	pings := [][]byte{
		[]byte(`{"type":"ping"}`),
		[]byte(`{"type": "ping"}`),
		[]byte(` { "type" : "ping" } `),
		[]byte(`{"id":7,"type":"ping"}`),
	}
	for _, raw := range pings {
		if !isPing(raw) {
			t.Errorf("isPing(%s) = false, want true", raw)
		}
	}

	others := [][]byte{
		[]byte(`{"type":"pong"}`),
		[]byte(`{"type":"PING"}`),
		[]byte(`ping`),
		[]byte(`{}`),
		nil,
	}
	for _, raw := range others {
		if isPing(raw) {
			t.Errorf("isPing(%s) = true, want false", raw)
		}
	}
}
