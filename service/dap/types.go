package dap

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-delve/remoteeval/service/debugger"
)

// LaunchConfig is the collection of launch request attributes recognized
// by the DAP implementation.
type LaunchConfig struct {
	// Protocol version spoken by the agent of the launched program.
	// (Default: the debugger default)
	ProtocolVersion string `json:"protocolVersion,omitempty"`

	// Pointer size of the launched program, 4 or 8.
	PointerSize int `json:"pointerSize,omitempty"`

	LaunchAttachCommonConfig
}

// AttachConfig is the collection of attach request attributes.
type AttachConfig struct {
	// Protocol version spoken by the agent of the program being attached to.
	ProtocolVersion string `json:"protocolVersion,omitempty"`

	LaunchAttachCommonConfig
}

// LaunchAttachCommonConfig is the attributes common in both launch/attach requests.
type LaunchAttachCommonConfig struct {
	// Automatically stop program after launch or attach.
	StopOnEntry bool `json:"stopOnEntry,omitempty"`

	// Timeout of function evaluations in milliseconds.
	// (Default: 1000)
	FuncEvalTimeout int `json:"funcEvalTimeout,omitempty"`

	// Let every thread run while a function evaluation is in progress.
	RunAllThreads bool `json:"runAllThreads,omitempty"`
}

// apply overrides the fields of conf set in c.
func (c *LaunchAttachCommonConfig) apply(conf *debugger.Config) {
	if c.FuncEvalTimeout > 0 {
		conf.FuncEvalTimeout = time.Duration(c.FuncEvalTimeout) * time.Millisecond
	}
	if c.RunAllThreads {
		conf.RunAllThreads = true
	}
}

// unmarshalLaunchAttachArgs wraps unmarshalling of launch/attach request's
// arguments attribute. Upon unmarshal failure, it returns an error massaged
// to be suitable for end-users.
func unmarshalLaunchAttachArgs(input json.RawMessage, config interface{}) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, config); err != nil {
		if uerr, ok := err.(*json.UnmarshalTypeError); ok {
			// "json: cannot unmarshal number into Go struct field LaunchConfig.protocolVersion of type string"
			//   => "cannot unmarshal number into 'protocolVersion' of type string"
			return fmt.Errorf("cannot unmarshal %v into %q of type %v", uerr.Value, uerr.Field, uerr.Type.String())
		}
		return err
	}
	return nil
}
