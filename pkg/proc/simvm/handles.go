package simvm

import (
	"fmt"
	"strings"

	"github.com/go-delve/remoteeval/pkg/metadata"
	"github.com/go-delve/remoteeval/pkg/proc"
)

// Object is a heap object of the simulated debuggee. Strings and boxed
// values are objects too.
type Object struct {
	ID   int64
	Type *metadata.Type
	// Fields holds the instance fields of class instances, by name.
	Fields map[string]proc.Handle
	// Str is the contents of a string object.
	Str string
	// Boxed is the value held by a boxed object.
	Boxed proc.Handle
}

func (o *Object) Kind() proc.HandleKind         { return proc.ObjectHandle }
func (o *Object) RuntimeType() *metadata.Type   { return o.Type }
func (o *Object) IsBoxed() bool                 { return o.Boxed != nil }
func (o *Object) isString() bool                { return o.Type != nil && o.Type.Code == metadata.TypeCodeString }
func (o *Object) Field(name string) proc.Handle { return o.Fields[name] }

func (o *Object) String() string {
	switch {
	case o.isString():
		return fmt.Sprintf("%q", o.Str)
	case o.Boxed != nil:
		return fmt.Sprintf("(%s) %v", o.Type.ShortName(), o.Boxed)
	}
	var fields []*metadata.Field
	for cur := o.Type; cur != nil; cur = cur.Base {
		fields = append(cur.InstanceFields(), fields...)
	}
	return fmt.Sprintf("%s#%d%s", o.Type.ShortName(), o.ID, formatFields(fields, func(i int) proc.Handle { return o.Fields[fields[i].Name] }))
}

// Struct is an instance of a struct or enum type. Structs are copied
// whenever they cross the protocol.
type Struct struct {
	Type *metadata.Type
	// Fields holds the instance fields in the order of
	// Type.InstanceFields(). Enums have a single field, their underlying
	// value.
	Fields []proc.Handle
}

func (s *Struct) Kind() proc.HandleKind       { return proc.StructHandle }
func (s *Struct) RuntimeType() *metadata.Type { return s.Type }
func (s *Struct) IsBoxed() bool               { return false }

// Field returns the field called name.
func (s *Struct) Field(name string) proc.Handle {
	for i, f := range s.Type.InstanceFields() {
		if f.Name == name {
			return s.Fields[i]
		}
	}
	return nil
}

// SetField sets the field called name.
func (s *Struct) SetField(name string, h proc.Handle) {
	for i, f := range s.Type.InstanceFields() {
		if f.Name == name {
			s.Fields[i] = h
			return
		}
	}
	panic(fmt.Errorf("%s has no field %s", s.Type, name))
}

func (s *Struct) String() string {
	if s.Type.IsEnum() {
		return fmt.Sprintf("%s(%v)", s.Type.ShortName(), s.Fields[0])
	}
	return s.Type.ShortName() + formatFields(s.Type.InstanceFields(), func(i int) proc.Handle { return s.Fields[i] })
}

func formatFields(fields []*metadata.Field, get func(int) proc.Handle) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", f.Name, get(i))
	}
	b.WriteByte('}')
	return b.String()
}

// copyHandle returns a copy of h with value semantics: structs are
// copied deeply, everything else is shared.
func copyHandle(h proc.Handle) proc.Handle {
	s, ok := h.(*Struct)
	if !ok {
		return h
	}
	r := &Struct{Type: s.Type, Fields: make([]proc.Handle, len(s.Fields))}
	for i := range s.Fields {
		r.Fields[i] = copyHandle(s.Fields[i])
	}
	return r
}

// Int32 returns the value of an Int32 primitive handle.
func Int32(h proc.Handle) int32 {
	if p, ok := h.(*proc.Primitive); ok {
		if v, ok := p.Val.(int32); ok {
			return v
		}
	}
	return 0
}

// Str returns the contents of a string handle.
func Str(h proc.Handle) string {
	if o, ok := h.(*Object); ok {
		return o.Str
	}
	return ""
}
