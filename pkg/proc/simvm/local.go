package simvm

import (
	"fmt"
	"sort"

	"github.com/go-delve/remoteeval/pkg/metadata"
	"github.com/go-delve/remoteeval/pkg/proc"
)

// Local is a local variable of the current frame of the debuggee.
type Local struct {
	vm   *VM
	Name string
	typ  *metadata.Type
	h    proc.Handle
	// ReadOnly locals reject stores.
	ReadOnly bool
}

func (l *Local) Type() *metadata.Type { return l.typ }

func (l *Local) Load() (proc.Handle, error) {
	if err := l.vm.checkThread(nil); err != nil {
		return nil, err
	}
	l.vm.mu.Lock()
	defer l.vm.mu.Unlock()
	return copyHandle(l.h), nil
}

func (l *Local) Store(h proc.Handle) error {
	if err := l.vm.checkThread(nil); err != nil {
		return err
	}
	if l.ReadOnly {
		return fmt.Errorf("local %s is read-only", l.Name)
	}
	if err := checkPassable(h, l.typ); err != nil {
		return fmt.Errorf("store %s: %v", l.Name, err)
	}
	l.vm.mu.Lock()
	l.h = copyHandle(h)
	l.vm.mu.Unlock()
	return nil
}

// Current returns the value held by l without going through the
// protocol.
func (l *Local) Current() proc.Handle {
	l.vm.mu.Lock()
	defer l.vm.mu.Unlock()
	return l.h
}

// SetLocal creates or replaces the local called name.
func (vm *VM) SetLocal(name string, typ *metadata.Type, h proc.Handle) *Local {
	l := &Local{vm: vm, Name: name, typ: typ, h: h}
	vm.mu.Lock()
	vm.locals[name] = l
	vm.mu.Unlock()
	return l
}

// Local returns the local called name.
func (vm *VM) Local(name string) (*Local, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	l, ok := vm.locals[name]
	return l, ok
}

// Locals returns every local sorted by name.
func (vm *VM) Locals() []*Local {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	r := make([]*Local, 0, len(vm.locals))
	for _, l := range vm.locals {
		r = append(r, l)
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Name < r[j].Name })
	return r
}
