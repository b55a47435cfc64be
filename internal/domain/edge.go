package domain

// Edge is the named outcome of a node invocation, paired with lazily
// computed data (spec §3 "Edge"). DataFactory is only invoked the
// first time Data() is read, so branches that ignore it never pay for
// side-effectful factories (spec §8 property 4).
type Edge struct {
	Name string

	dataFactory func() any
	data        any
	read        bool
}

// NewEdge builds an edge with no associated data.
func NewEdge(name string) Edge {
	return Edge{Name: name}
}

// NewEdgeWithData builds an edge whose data is produced lazily by factory.
func NewEdgeWithData(name string, factory func() any) Edge {
	return Edge{Name: name, dataFactory: factory}
}

// Data returns the edge's data, invoking its factory at most once.
func (e *Edge) Data() any {
	if e.read {
		return e.data
	}
	e.read = true
	if e.dataFactory != nil {
		e.data = e.dataFactory()
	}
	return e.data
}

// DataFactoryInvoked reports whether Data() has ever been called; used
// by tests that assert laziness with a spy factory.
func (e *Edge) DataFactoryInvoked() bool {
	return e.read
}
