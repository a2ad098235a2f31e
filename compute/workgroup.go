package compute

import "fmt"

// KernelFunc is the host body of a kernel, invoked once per work-group.
type KernelFunc func(g *WorkGroup) error

// WorkGroup is the view a CPU kernel body has of its work-group: its position
// in the NDRange, its bound arguments and its local memory.
type WorkGroup struct {
	id        [3]int
	numGroups [3]int
	local     [3]int
	args      []any
	scratch   map[int][]uint32
}

func (g *WorkGroup) GroupID(dim int) int   { return g.id[dim] }
func (g *WorkGroup) NumGroups(dim int) int { return g.numGroups[dim] }
func (g *WorkGroup) LocalSize(dim int) int { return g.local[dim] }

// GlobalID maps a local id in dimension dim to its global id.
func (g *WorkGroup) GlobalID(dim, local int) int { return g.id[dim]*g.local[dim] + local }

// Items is the number of work items in the group.
func (g *WorkGroup) Items() int { return g.local[0] * g.local[1] * g.local[2] }

// ForEachItem runs one phase of the kernel for every work item, passing the
// flattened local id. All items finish the phase before it returns, so
// consecutive calls are separated by a group barrier.
func (g *WorkGroup) ForEachItem(fn func(item int)) {
	n := g.Items()
	for i := 0; i < n; i++ {
		fn(i)
	}
}

// Buffer returns the words of the buffer bound at argument i.
func (g *WorkGroup) Buffer(i int) []uint32 {
	b, ok := g.args[i].(*cpuBuffer)
	if !ok {
		panic(fmt.Sprintf("argument %d is %T, not a buffer", i, g.args[i]))
	}
	return b.data
}

// Uint returns the scalar bound at argument i.
func (g *WorkGroup) Uint(i int) uint32 {
	v, ok := g.args[i].(uint32)
	if !ok {
		panic(fmt.Sprintf("argument %d is %T, not a scalar", i, g.args[i]))
	}
	return v
}

// Local returns the group's scratch memory for the Local argument i.
func (g *WorkGroup) Local(i int) []uint32 {
	s, ok := g.scratch[i]
	if !ok {
		panic(fmt.Sprintf("argument %d is not local memory", i))
	}
	return s
}
