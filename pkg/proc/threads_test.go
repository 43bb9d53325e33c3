package proc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-delve/remoteeval/pkg/metadata"
	"github.com/go-delve/remoteeval/pkg/protoversion"
)

func TestSelectThreads(t *testing.T) {
	main := &Thread{ID: 1, Domain: 1, Kind: ThreadMain}
	fin := &Thread{ID: 2, Domain: 1, Kind: ThreadFinalizer}
	w1 := &Thread{ID: 3, Domain: 1}
	w2 := &Thread{ID: 4, Domain: 1}
	other := &Thread{ID: 5, Domain: 2}
	all := []*Thread{fin, w2, other, main, w1}

	for _, tc := range []struct {
		current, brk *Thread
		want         []*Thread
	}{
		{w1, w2, []*Thread{w1, w2, main, fin}},
		{fin, w1, []*Thread{fin, w1, main, w2}},
		{nil, nil, []*Thread{main, w2, w1, fin}},
		{main, main, []*Thread{main, w2, w1, fin}},
		{other, nil, []*Thread{main, w2, w1, fin}},
	} {
		got := SelectThreads(all, 1, tc.current, tc.brk)
		if fmt.Sprint(got) != fmt.Sprint(tc.want) {
			t.Errorf("SelectThreads(current=%v, break=%v) = %v, want %v", tc.current, tc.brk, got, tc.want)
		}
	}
}

func TestAgentErrorClassification(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want ErrorKind
	}{
		{fmt.Errorf("thread 3: %w", ErrVMNotSuspended), VMRaceDetected},
		{fmt.Errorf("invoke: %w", ErrAgentTimeout), Timeout},
		{errors.New("bad request"), InternalProtocolError},
		{ErrDepthExceeded, DepthExceeded},
	} {
		err := agentError(tc.err)
		if ErrorKindOf(err) != tc.want {
			t.Errorf("agentError(%v) = %v, want %v", tc.err, err, tc.want)
		}
		if !errors.Is(err, &EvalError{Kind: tc.want}) {
			t.Errorf("errors.Is(%v, %v) failed", err, tc.want)
		}
	}
	if agentError(nil) != nil {
		t.Error("agentError(nil) != nil")
	}
}

func TestResolverCachesOverrides(t *testing.T) {
	u := metadata.NewUniverse(1)
	str := u.StringType()
	speak := &metadata.Method{Name: "Speak", Return: str, Virtual: true}
	base := u.Add(&metadata.Type{Name: "Base", Kind: metadata.Class, Methods: []*metadata.Method{speak}})
	override := &metadata.Method{Name: "Speak", Return: str, Virtual: true, Overrides: speak}
	derived := u.Add(&metadata.Type{Name: "Derived", Kind: metadata.Class, Base: base, Methods: []*metadata.Method{override}})

	r := newMethodResolver(4)
	old := protoversion.MustParse("2.30")
	for i := 0; i < 2; i++ {
		m, flags, err := r.resolve(old, speak, derived, false)
		if err != nil || m != override || flags != 0 {
			t.Fatalf("resolve = %v %#x %v", m, flags, err)
		}
	}
	if r.overrides.Len() != 1 {
		t.Fatalf("expected one cached override, got %d", r.overrides.Len())
	}
	if m, _, _ := r.resolve(old, speak, base, false); m != speak {
		t.Fatalf("resolve on base = %v", m)
	}
	if m, flags, _ := r.resolve(protoversion.MustParse("2.37"), speak, derived, false); m != speak || flags != CallVirtual {
		t.Fatalf("native dispatch resolve = %v %#x", m, flags)
	}
}

func TestConvertPrimitive(t *testing.T) {
	u := metadata.NewUniverse(1)
	i32 := &Primitive{Type: u.PrimitiveType(metadata.TypeCodeInt32), Val: int32(-1)}
	for _, tc := range []struct {
		code metadata.TypeCode
		want interface{}
	}{
		{metadata.TypeCodeInt64, int64(-1)},
		{metadata.TypeCodeByte, uint8(255)},
		{metadata.TypeCodeDouble, float64(-1)},
		{metadata.TypeCodeChar, uint16(0xffff)},
	} {
		p, err := ConvertPrimitive(i32, u.PrimitiveType(tc.code))
		if err != nil || p.Val != tc.want {
			t.Errorf("ConvertPrimitive(-1, %v) = %#v %v", tc.code, p, err)
		}
	}
	if _, err := ConvertPrimitive(i32, u.PrimitiveType(metadata.TypeCodeBoolean)); err == nil {
		t.Error("converting a number to a boolean should fail")
	}
}
