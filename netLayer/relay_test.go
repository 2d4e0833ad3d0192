package netLayer

import (
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/e1732a364fed/forwardproxy/utils"
)

func TestRelay(t *testing.T) {
	client, clientInProxy := tcpPair(t)
	peerInProxy, peer := tcpPair(t)
	defer client.Close()
	defer peer.Close()

	resultChan := make(chan RelayResult, 1)
	go func() {
		resultChan <- Relay(clientInProxy, peerInProxy)
	}()

	client.Write([]byte("ping"))
	client.CloseWrite()

	got, err := io.ReadAll(peer)
	if err != nil || string(got) != "ping" {
		t.Log(string(got), err)
		t.FailNow()
	}

	peer.Write([]byte("pong!"))
	peer.CloseWrite()

	got, err = io.ReadAll(client)
	if err != nil || string(got) != "pong!" {
		t.Log(string(got), err)
		t.FailNow()
	}

	select {
	case r := <-resultChan:
		if r.Err != nil || r.Up != 4 || r.Down != 5 || !r.Exchanged() {
			t.Log(r)
			t.Fail()
		}
	case <-time.After(5 * time.Second):
		t.Log("relay not finished")
		t.Fail()
	}
}

type brokenStream struct {
	Pending
	closed int32
}

func (s *brokenStream) Read([]byte) (int, error) {
	return 0, errors.New("boom")
}
func (s *brokenStream) Write(p []byte) (int, error) { return len(p), nil }
func (s *brokenStream) CloseWrite() error { return nil }
func (s *brokenStream) Close() error {
	atomic.AddInt32(&s.closed, 1)
	return nil
}

func TestRelayErrorClosesBoth(t *testing.T) {
	client, clientInProxy := tcpPair(t)
	defer client.Close()

	bs := &brokenStream{}

	resultChan := make(chan RelayResult, 1)
	go func() {
		resultChan <- Relay(clientInProxy, bs)
	}()

	var r RelayResult
	select {
	case r = <-resultChan:
	case <-time.After(5 * time.Second):
		t.Log("relay should end after the error")
		t.FailNow()
	}

	if r.Err == nil || r.Err.Error() == "" || !errors.Is(r.Err, utils.ErrTransport) {
		t.Log(r.Err)
		t.Fail()
	}
	if r.Exchanged() {
		t.Fail()
	}
	if atomic.LoadInt32(&bs.closed) == 0 {
		t.Log("broken stream not closed")
		t.Fail()
	}

	// 客户端一侧也应该被关闭
	client.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, err := client.Read(make([]byte, 1)); err == nil {
		t.Log("client side should be closed")
		t.Fail()
	}
}

func TestRelayResultExchanged(t *testing.T) {
	for _, c := range []struct {
		r    RelayResult
		want bool
	}{
		{RelayResult{}, false},
		{RelayResult{Up: 20}, false}, //只写出, 对端没有回应
		{RelayResult{Down: 3}, true},
		{RelayResult{Up: 20, Down: 3}, true},
	} {
		if c.r.Exchanged() != c.want {
			t.Log(c.r, c.want)
			t.Fail()
		}
	}
}
