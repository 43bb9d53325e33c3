package proc

import (
	"fmt"
	"math"
	"sort"
)

// ThreadKind distinguishes the threads the runtime treats specially.
type ThreadKind uint8

const (
	ThreadOther ThreadKind = iota
	ThreadMain
	ThreadFinalizer
)

// Thread is a thread of the debuggee.
type Thread struct {
	ID     int64
	Name   string
	Domain int
	Kind   ThreadKind
}

func (t *Thread) String() string {
	if t == nil {
		return "<nil>"
	}
	if t.Name != "" {
		return fmt.Sprintf("%d (%s)", t.ID, t.Name)
	}
	return fmt.Sprintf("%d", t.ID)
}

func sameThread(a, b *Thread) bool {
	return a != nil && b != nil && a.ID == b.ID
}

// threadOrder ranks t as an evaluation candidate, lower first.
func threadOrder(t, current, brk *Thread) int {
	switch {
	case sameThread(t, current):
		return 0
	case sameThread(t, brk):
		return 1
	case t.Kind == ThreadMain:
		return 2
	case t.Kind == ThreadFinalizer:
		return math.MaxInt32
	}
	return 3
}

// SelectThreads returns the threads of domain that can run an
// evaluation, in the order they should be tried: the current thread, the
// thread that hit the break, the main thread, every other thread and
// finally the finalizer thread.
func SelectThreads(threads []*Thread, domain int, current, brk *Thread) []*Thread {
	r := make([]*Thread, 0, len(threads))
	for _, t := range threads {
		if t.Domain == domain {
			r = append(r, t)
		}
	}
	sort.SliceStable(r, func(i, j int) bool {
		return threadOrder(r[i], current, brk) < threadOrder(r[j], current, brk)
	})
	return r
}
