package vsock

import (
	"net"
	"strings"
	"testing"
)

type frameTestMsg struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestFrameCodecRoundTrip(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	server := newFrameCodec(serverConn)
	client := newFrameCodec(clientConn)

	want := frameTestMsg{Name: "dispatch", Value: 42}
	done := make(chan error, 1)
	go func() { done <- client.send(want) }()

	var got frameTestMsg
	if err := server.receive(&got); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("send: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestFrameCodecRejectsOversizedFrame(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	server := newFrameCodec(serverConn)

	go func() {
		lenBuf := []byte{0xFF, 0xFF, 0xFF, 0xFF}
		clientConn.Write(lenBuf)
	}()

	var got frameTestMsg
	err := server.receive(&got)
	if err == nil {
		t.Fatal("expected an error for an oversized frame, got nil")
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected a frame-too-large error, got: %v", err)
	}
}
