package evaluator

// Binding is a single symbol-to-value entry in an environment.
type Binding struct {
	Name  string
	Value Value
}

// Env is an ordered mapping from symbol name to value.
// Insertion order is preserved via the bindings slice. Environments are never
// shared between call frames: closures capture a Copy and every invocation
// extends a fresh Copy of that snapshot.
type Env struct {
	bindings []Binding
	index    map[string]int
}

// NewEnv creates an empty environment.
func NewEnv() *Env {
	return &Env{index: make(map[string]int)}
}

// NewEnvFrom creates an environment holding the given bindings in order.
func NewEnvFrom(bindings []Binding) *Env {
	env := NewEnv()
	for _, b := range bindings {
		env.Set(b.Name, b.Value)
	}
	return env
}

// Get looks up a binding by symbol name.
func (e *Env) Get(name string) (Value, bool) {
	if e == nil {
		return nil, false
	}
	i, ok := e.index[name]
	if !ok {
		return nil, false
	}
	return e.bindings[i].Value, true
}

// Set binds name in this environment, overwriting in place if already bound.
func (e *Env) Set(name string, val Value) {
	if i, ok := e.index[name]; ok {
		e.bindings[i].Value = val
		return
	}
	e.index[name] = len(e.bindings)
	e.bindings = append(e.bindings, Binding{Name: name, Value: val})
}

// Has checks whether name is bound.
func (e *Env) Has(name string) bool {
	_, ok := e.Get(name)
	return ok
}

// Len returns the number of bindings.
func (e *Env) Len() int {
	if e == nil {
		return 0
	}
	return len(e.bindings)
}

// Names returns all bound names in insertion order.
func (e *Env) Names() []string {
	if e == nil {
		return nil
	}
	names := make([]string, len(e.bindings))
	for i, b := range e.bindings {
		names[i] = b.Name
	}
	return names
}

// Copy returns an independent snapshot. Later Sets on either side are not
// visible to the other.
func (e *Env) Copy() *Env {
	if e == nil {
		return NewEnv()
	}
	out := &Env{
		bindings: make([]Binding, len(e.bindings)),
		index:    make(map[string]int, len(e.index)),
	}
	copy(out.bindings, e.bindings)
	for k, v := range e.index {
		out.index[k] = v
	}
	return out
}
