package service

import (
	"net"

	"github.com/go-delve/remoteeval/service/debugger"
)

// Config provides the configuration to start a Debugger and expose it with a
// service.
type Config struct {
	// Listener is used to serve requests.
	Listener net.Listener

	// Debugger is the configuration used by the debugger started by a
	// launch or attach request.
	Debugger debugger.Config

	// DisconnectChan will be closed by the server when the client disconnects
	DisconnectChan chan<- struct{}
}
