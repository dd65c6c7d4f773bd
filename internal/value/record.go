package value

// Field is one (name, value) entry of a record, stored in declaration
// order; field lookup is linear by name equality.
type Field struct {
	Name string
	Val  Value
}

// RecordObj is an Object plus an ordered sequence of fields. The record
// owns every field value.
type RecordObj struct {
	Object
	fields []Field
}

func (r *RecordObj) header() *Object { return &r.Object }

func (r *RecordObj) destroy() {
	for _, f := range r.fields {
		Release(f.Val)
	}
	r.fields = nil
}

// NewRecord takes ownership of fields' values, the same convention as
// NewArray.
func NewRecord(fields []Field) Value {
	obj := &RecordObj{fields: fields}
	trackAlloc()
	return Value{kind: KindRecord, obj: obj}
}

func AsRecord(v Value) *RecordObj { return v.obj.(*RecordObj) }

func (r *RecordObj) Len() int { return len(r.fields) }

func (r *RecordObj) Fields() []Field { return r.fields }

// Get looks up a field by name. Whether a missing field is an error or
// yields Nil is the spec's open question (b); this implementation yields
// Nil (see DESIGN.md).
func (r *RecordObj) Get(name string) (Value, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Val, true
		}
	}
	return Nil(), false
}

// SetInPlace mutates the record destructively: it releases the old value
// of an existing field (retaining the new one), or appends a new field
// when name is absent. This is the "mutate-in-place" variant the spec
// describes alongside the copy variants.
func (r *RecordObj) SetInPlace(name string, v Value) {
	Retain(v)
	for i := range r.fields {
		if r.fields[i].Name == name {
			Release(r.fields[i].Val)
			r.fields[i].Val = v
			return
		}
	}
	r.fields = append(r.fields, Field{Name: name, Val: v})
}

// RemoveAtInPlace destructively removes the field at index i, releasing
// its value.
func (r *RecordObj) RemoveAtInPlace(i int) {
	Release(r.fields[i].Val)
	r.fields = append(r.fields[:i], r.fields[i+1:]...)
}

// Put, Set and RemoveAt are the immutable-with-copy variants described by
// the spec (§9, open question a). The original implementation ships these
// as unfinished stubs that hand back a placeholder rather than a genuine
// copy; this port preserves that rather than inventing copy-on-write
// semantics the spec explicitly declines to define. Callers that need
// non-destructive field updates should build a new record from scratch
// instead of relying on these.

// Put returns rec unchanged; a real copy-on-write implementation is an
// open question (§9a).
func (r *RecordObj) Put(name string, v Value) Value {
	return Value{kind: KindRecord, obj: r}
}

// Set returns rec unchanged; see Put.
func (r *RecordObj) Set(name string, v Value) Value {
	return Value{kind: KindRecord, obj: r}
}

// RemoveAt returns rec unchanged; see Put.
func (r *RecordObj) RemoveAt(i int) Value {
	return Value{kind: KindRecord, obj: r}
}
