package simvm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-delve/remoteeval/pkg/proc"
	"github.com/go-delve/remoteeval/pkg/protoversion"
)

func TestStructsCopiedAcrossProtocol(t *testing.T) {
	f := NewFixture(protoversion.MustParse("2.30"))
	l, _ := f.Local("p")
	h, err := l.Load()
	require.NoError(t, err)
	h.(*Struct).SetField("X", f.NewInt32(100))
	require.Equal(t, int32(1), Int32(l.Current().(*Struct).Field("X")))

	require.NoError(t, l.Store(h))
	h.(*Struct).SetField("X", f.NewInt32(200))
	require.Equal(t, int32(100), Int32(l.Current().(*Struct).Field("X")))
}

func TestLocalStoreChecksType(t *testing.T) {
	f := NewFixture(protoversion.MustParse("2.30"))
	l, _ := f.Local("p")
	require.Error(t, l.Store(f.NewInt32(1)))
	require.Error(t, l.Store(&proc.Null{Type: f.Point}))

	frozen, _ := f.Local("frozen")
	require.Error(t, frozen.Store(f.NewStruct(f.Point, f.NewInt32(0), f.NewInt32(0))))

	pet, _ := f.Local("pet")
	require.NoError(t, pet.Store(&proc.Null{Type: f.Animal}))
}

func TestInvokeFlagsNeedProtocolSupport(t *testing.T) {
	f := NewFixture(protoversion.MustParse("2.34"))
	pet, _ := f.Local("pet")
	ctx := context.Background()

	_, err := f.Invoke(ctx, &proc.Call{Method: f.AnimalSpeak, Receiver: pet.Current(), Flags: proc.CallVirtual, Thread: f.Main})
	require.Error(t, err)

	p, _ := f.Local("p")
	_, err = f.Invoke(ctx, &proc.Call{Method: f.PointSum, Receiver: p.Current(), Flags: proc.CallReturnOutThis, Thread: f.Main})
	require.Error(t, err)

	res, err := f.Invoke(ctx, &proc.Call{Method: f.PointSum, Receiver: p.Current(), Thread: f.Main})
	require.NoError(t, err)
	require.Equal(t, int32(3), Int32(res.Result))
}

func TestNativeDispatch(t *testing.T) {
	f := NewFixture(protoversion.MustParse("2.37"))
	ctx := context.Background()
	greeter, _ := f.Local("greeter")
	res, err := f.Invoke(ctx, &proc.Call{Method: f.Greet, Receiver: greeter.Current(), Flags: proc.CallVirtual, Thread: f.Main})
	require.NoError(t, err)
	require.Equal(t, "Hello", Str(res.Result))

	_, err = f.Invoke(ctx, &proc.Call{Method: f.Greet, Receiver: greeter.Current(), Thread: f.Main})
	require.Error(t, err, "abstract method invoked without dispatch")
}

func TestBoxUnbox(t *testing.T) {
	f := NewFixture(protoversion.MustParse("2.30"))
	p, _ := f.Local("p")
	boxed, err := f.Box(p.Current(), f.Point)
	require.NoError(t, err)
	require.True(t, boxed.IsBoxed())
	require.Equal(t, proc.ObjectHandle, boxed.Kind())

	v, err := f.Unbox(boxed, f.Point)
	require.NoError(t, err)
	require.Equal(t, "Point{X: 1, Y: 2}", v.(*Struct).String())

	_, err = f.Unbox(boxed, f.Line)
	require.Error(t, err)
	_, err = f.Box(boxed, f.Point)
	require.Error(t, err)
}

func TestThreadStates(t *testing.T) {
	f := NewFixture(protoversion.MustParse("2.30"))
	ctx := context.Background()
	c := &proc.Call{Method: f.Add, Args: []proc.Handle{f.NewInt32(1), f.NewInt32(2)}, Thread: f.Worker}

	f.SetUnsafe(f.Worker.ID, true)
	_, err := f.Invoke(ctx, c)
	require.True(t, errors.Is(err, proc.ErrVMNotSuspended))

	f.SetUnsafe(f.Worker.ID, false)
	require.NoError(t, f.Resume())
	_, err = f.Invoke(ctx, c)
	require.Error(t, err)

	require.NoError(t, f.Suspend())
	res, err := f.Invoke(ctx, c)
	require.NoError(t, err)
	require.Equal(t, int32(3), Int32(res.Result))
	require.Len(t, f.Calls(), 3)
}
