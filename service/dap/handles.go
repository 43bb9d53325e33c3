package dap

// Handles given to the client start here so they are never mistaken for
// thread ids.
const startHandle = 1000

// handlesMap hands out the frame ids and variable references sent to the
// client. Every handle is invalidated when the debuggee resumes, since
// the values they point to are released at that point.
type handlesMap struct {
	next int
	vals map[int]interface{}
}

// stackFrame is the single frame reported for a thread.
type stackFrame struct {
	threadID int64
}

// localsScope references the locals visible from a frame.
type localsScope struct {
	threadID int64
}

func newHandlesMap() *handlesMap {
	hs := &handlesMap{}
	hs.reset()
	return hs
}

func (hs *handlesMap) reset() {
	hs.next = startHandle
	hs.vals = make(map[int]interface{})
}

func (hs *handlesMap) create(value interface{}) int {
	h := hs.next
	hs.next++
	hs.vals[h] = value
	return h
}

func (hs *handlesMap) get(handle int) (interface{}, bool) {
	v, ok := hs.vals[handle]
	return v, ok
}
