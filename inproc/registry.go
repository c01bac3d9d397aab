// Package inproc is the reference in-process Endpoint/Forwarder pair: the
// conformance target every other transport is measured against. A
// process-global registry maps an endpoint name to a connect channel,
// followed by a one-shot reply handshake and a per-connection goroutine
// draining a request channel, all built on Go channels and goroutines.
package inproc

import (
	"fmt"
	"sync"

	"github.com/oriys/corvus"
)

// connectIntent is what a Client sends into a registered endpoint's
// connect channel to open a new connection.
type connectIntent struct {
	replyCh chan connectReply
	// clientCallbackCh is non-nil only for a duplex connect: it is the
	// channel the server uses to push callback requests back to the
	// client's own dedicated callback-serving goroutine.
	clientCallbackCh chan requestMsg
}

// connectReply is the handshake response: the minted session id and the
// channel the client will send its own requests on.
type connectReply struct {
	sessionID string
	requestCh chan requestMsg
}

// requestMsg is one in-flight call: the operation name and its encoded
// arguments, plus the one-shot channel the response should be delivered
// on.
type requestMsg struct {
	name   string
	params []byte
	respCh chan responseMsg
}

type responseMsg struct {
	value []byte
	err   *corvus.ServiceError
}

var (
	registryMu sync.Mutex
	registry   = map[string]chan connectIntent{}
)

func register(name string, ch chan connectIntent) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		return fmt.Errorf("inproc: endpoint %q already registered", name)
	}
	registry[name] = ch
	return nil
}

func unregister(name string, ch chan connectIntent) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if cur, ok := registry[name]; ok && cur == ch {
		delete(registry, name)
	}
}

func lookup(name string) (chan connectIntent, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	ch, ok := registry[name]
	return ch, ok
}

// Registered reports whether an Endpoint is currently registered under
// name. Exposed for callers that need to wait for an Endpoint's Run loop
// to reach the point of accepting connections before dialing Client.
func Registered(name string) bool {
	_, ok := lookup(name)
	return ok
}
