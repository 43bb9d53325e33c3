package callexpr_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-delve/remoteeval/pkg/metadata"
	"github.com/go-delve/remoteeval/pkg/proc"
	"github.com/go-delve/remoteeval/pkg/proc/callexpr"
	"github.com/go-delve/remoteeval/pkg/proc/simvm"
	"github.com/go-delve/remoteeval/pkg/protoversion"
)

type fixtureScope struct {
	f *simvm.Fixture
	s *proc.Session
}

func (sc *fixtureScope) Lookup(name string) (*metadata.Type, bool) {
	return sc.f.Types().Lookup(name)
}

func (sc *fixtureScope) PrimitiveType(code metadata.TypeCode) *metadata.Type {
	return sc.f.Types().PrimitiveType(code)
}

func (sc *fixtureScope) Local(name string) (*proc.Value, error) {
	l, ok := sc.f.Local(name)
	if !ok {
		return nil, callexpr.ErrNotFound
	}
	return sc.s.NewValue(l)
}

func newScope() *fixtureScope {
	f := simvm.NewFixture(protoversion.MustParse("2.40"))
	s := proc.NewSession(f, f.Types(), proc.Config{})
	s.OnDebuggeePaused(proc.StopState{CurrentThread: f.Main})
	return &fixtureScope{f, s}
}

func primitive(t *testing.T, v interface{}) *proc.Primitive {
	t.Helper()
	p, ok := v.(*proc.Primitive)
	require.True(t, ok, "expected primitive, got %#v", v)
	return p
}

func TestBindInstanceCall(t *testing.T) {
	sc := newScope()
	req, err := callexpr.Bind(sc, "p.Offset(5)")
	require.NoError(t, err)
	require.Equal(t, sc.f.PointOffset, req.Method)
	require.NotNil(t, req.Receiver)
	require.Equal(t, sc.f.Point, req.Receiver.Type())
	require.False(t, req.NewObject)
	require.Len(t, req.Args, 1)
	require.Equal(t, int32(5), primitive(t, req.Args[0]).Val)

	req, err = callexpr.Bind(sc, "pet.Speak()")
	require.NoError(t, err)
	require.Equal(t, sc.f.AnimalSpeak, req.Method)

	req, err = callexpr.Bind(sc, "greeter.Greet()")
	require.NoError(t, err)
	require.Equal(t, sc.f.Greet, req.Method)

	req, err = callexpr.Bind(sc, "n.ToString()")
	require.NoError(t, err)
	require.Equal(t, sc.f.Int32ToString, req.Method)
}

func TestBindStaticCall(t *testing.T) {
	sc := newScope()
	for _, expr := range []string{"Demo.Util.Add(1, -2)", "Util.Add(1, -2)", "(Demo.Util.Add(1, -2))"} {
		req, err := callexpr.Bind(sc, expr)
		require.NoError(t, err, expr)
		require.Equal(t, sc.f.Add, req.Method, expr)
		require.Nil(t, req.Receiver, expr)
		require.Equal(t, int32(1), primitive(t, req.Args[0]).Val, expr)
		require.Equal(t, int32(-2), primitive(t, req.Args[1]).Val, expr)
	}
}

func TestBindArguments(t *testing.T) {
	sc := newScope()
	i64 := sc.f.Types().PrimitiveType(metadata.TypeCodeInt64)
	dbl := sc.f.Types().PrimitiveType(metadata.TypeCodeDouble)

	req, err := callexpr.Bind(sc, "Demo.Util.Echo(3.5)")
	require.NoError(t, err)
	require.Equal(t, dbl, primitive(t, req.Args[0]).Type)
	require.Equal(t, 3.5, primitive(t, req.Args[0]).Val)

	req, err = callexpr.Bind(sc, "Demo.Util.Echo(int64(3))")
	require.NoError(t, err)
	require.Equal(t, i64, primitive(t, req.Args[0]).Type)
	require.Equal(t, int64(3), primitive(t, req.Args[0]).Val)

	req, err = callexpr.Bind(sc, "Demo.Util.Echo('A')")
	require.NoError(t, err)
	require.Equal(t, proc.Char('A'), req.Args[0])

	req, err = callexpr.Bind(sc, `Demo.Util.Format("x", 1, 2)`)
	require.NoError(t, err)
	require.Equal(t, sc.f.Format, req.Method)
	require.Equal(t, "x", req.Args[0])

	req, err = callexpr.Bind(sc, "Demo.Util.Echo(null)")
	require.NoError(t, err)
	require.Nil(t, req.Args[0])

	req, err = callexpr.Bind(sc, "Demo.Util.Echo(true)")
	require.NoError(t, err)
	require.Equal(t, true, req.Args[0])

	req, err = callexpr.Bind(sc, "Demo.Util.Echo(s)")
	require.NoError(t, err)
	v, ok := req.Args[0].(*proc.Value)
	require.True(t, ok)
	require.Equal(t, sc.f.Types().StringType(), v.Type())
}

func TestBindConstructors(t *testing.T) {
	sc := newScope()
	req, err := callexpr.Bind(sc, "new(Demo.Point, 1, 2)")
	require.NoError(t, err)
	require.True(t, req.NewObject)
	require.Equal(t, sc.f.PointCtor, req.Method)
	require.Nil(t, req.Receiver)

	req, err = callexpr.Bind(sc, "p.ctor(1, 2)")
	require.NoError(t, err)
	require.False(t, req.NewObject)
	require.Equal(t, sc.f.PointCtor, req.Method)
	require.NotNil(t, req.Receiver)

	req, err = callexpr.Bind(sc, `new(Dog, "Fido")`)
	require.NoError(t, err)
	require.Equal(t, sc.f.DogCtor, req.Method)
}

func TestBindArityMismatchLeftToEngine(t *testing.T) {
	sc := newScope()
	req, err := callexpr.Bind(sc, `Demo.Util.Format("x", 1)`)
	require.NoError(t, err)
	require.Equal(t, sc.f.Format, req.Method)

	out := sc.s.Evaluate(context.Background(), req)
	require.Equal(t, proc.OutcomeError, out.Kind())
	require.ErrorIs(t, out.Err(), proc.ErrMalformedRequest)
}

func TestBindErrors(t *testing.T) {
	sc := newScope()
	for _, expr := range []string{
		"1 + 2",
		"q.Foo()",
		"Demo.Util.Nope()",
		"Demo.Util.Echo(Demo.Util.Add(1, 2))",
		"Demo.Util.Echo(int64(n))",
		"Demo.Util.Echo(missing)",
		"Add(1, 2)",
		"new()",
		"new(Demo.Nope)",
		"p.Offset(",
	} {
		_, err := callexpr.Bind(sc, expr)
		require.Error(t, err, expr)
	}
}

func TestBindLiteralOverflow(t *testing.T) {
	sc := newScope()
	for _, expr := range []string{
		"Demo.Util.Add(3000000000, 1)",
		"Demo.Util.Add(1, -2147483649)",
		"Demo.Util.Echo(byte(300))",
		"Demo.Util.Echo(uint32(-1))",
		"Demo.Util.Echo(char(65536))",
		"Demo.Util.Echo(uint64(18446744073709551616))",
	} {
		_, err := callexpr.Bind(sc, expr)
		require.ErrorIs(t, err, proc.ErrMalformedRequest, expr)
	}

	req, err := callexpr.Bind(sc, "Demo.Util.Add(2147483647, -2147483648)")
	require.NoError(t, err)
	require.Equal(t, int32(2147483647), primitive(t, req.Args[0]).Val)
	require.Equal(t, int32(-2147483648), primitive(t, req.Args[1]).Val)

	req, err = callexpr.Bind(sc, "Demo.Util.Echo(byte(255))")
	require.NoError(t, err)
	require.Equal(t, uint8(255), primitive(t, req.Args[0]).Val)
}
