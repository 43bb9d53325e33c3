package proc

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/go-delve/remoteeval/pkg/metadata"
	"github.com/go-delve/remoteeval/pkg/protoversion"
)

const defaultResolverCacheSize = 256

// methodResolver picks the method implementation a call must run and the
// call flags the agent needs.
type methodResolver struct {
	// overrides caches the result of the manual override search, keyed by
	// overrideKey.
	overrides *lru.Cache
}

type overrideKey struct {
	method  *metadata.Method
	runtime *metadata.Type
}

func newMethodResolver(size int) *methodResolver {
	if size <= 0 {
		size = defaultResolverCacheSize
	}
	cache, _ := lru.New(size)
	return &methodResolver{overrides: cache}
}

// resolve returns the method to call when calling m on a receiver of
// runtime type recv. recv is nil for static calls.
func (r *methodResolver) resolve(version protoversion.Version, m *metadata.Method, recv *metadata.Type, nonVirtual bool) (*metadata.Method, CallFlags, error) {
	if m.Kind != metadata.MethodKindMetadata {
		return nil, 0, newEvalError(InternalProtocolError, "method %s can not be invoked remotely", m)
	}
	if m.IsConstructedGeneric() && !version.SupportsGenericMethodCalls() {
		return nil, 0, &EvalError{Kind: UnsupportedOnRuntime, Detail: "generic method calls need a newer runtime"}
	}

	called := m
	var flags CallFlags
	switch {
	case nonVirtual || m.Static || !(m.Virtual || m.Abstract):
	case version.SupportsVirtualDispatch():
		flags |= CallVirtual
	case recv != nil:
		called = r.findOverride(recv, m)
	}

	if called.DeclaringType.ContainsGenericParameters() && !version.SupportsOpenGenericTypes() {
		return nil, 0, &EvalError{Kind: UnsupportedOnRuntime, Detail: "members of generic types need a newer runtime"}
	}
	return called, flags, nil
}

func (r *methodResolver) findOverride(recv *metadata.Type, m *metadata.Method) *metadata.Method {
	key := overrideKey{m, recv}
	if v, ok := r.overrides.Get(key); ok {
		return v.(*metadata.Method)
	}
	called := findOverride(recv, m)
	r.overrides.Add(key, called)
	return called
}

// findOverride emulates virtual dispatch: it searches the virtual methods
// of recv, most derived first, for one with the same signature as m.
// Non-virtual methods only hide m and are never dispatched to. If
// none is found and m belongs to an interface it looks for an explicit
// interface implementation, which is private, has a different name and
// the same signature. It returns m if nothing matches.
func findOverride(recv *metadata.Type, m *metadata.Method) *metadata.Method {
	cmp := metadata.SigComparer{Options: metadata.CompareName}
	methods := recv.AllMethods()
	for _, cand := range methods {
		if cand.Static || cand.Constructor || !cand.Virtual {
			continue
		}
		if cmp.Equal(cand, m) {
			return cand
		}
	}
	if !m.DeclaringType.IsInterface() {
		return m
	}
	cmp.Options = 0
	for _, cand := range methods {
		if !cand.Virtual || !cand.Private || cand.Name == m.Name || cand.Static {
			continue
		}
		if cmp.Equal(cand, m) {
			return cand
		}
	}
	return m
}
