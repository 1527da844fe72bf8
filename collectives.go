package gudaprim

// Group collectives. Every item of the work-group must call the same
// collective in the same order; each one contains group barriers.

// Broadcast returns the value v passed by item src to every item.
func Broadcast[T any](it *Item, v T, src int) T {
	g := it.group
	if it.local == src {
		g.result = v
	}
	it.Barrier()
	out := g.result.(T)
	it.Barrier()
	return out
}

// ReduceOver combines the values of all items with op in item order.
func ReduceOver[T any](it *Item, v T, op func(a, b T) T) T {
	g := it.group
	g.exchange[it.local] = v
	it.Barrier()
	if it.IsLeader() {
		acc := g.exchange[0].(T)
		for i := 1; i < g.size; i++ {
			acc = op(acc, g.exchange[i].(T))
		}
		g.result = acc
	}
	it.Barrier()
	out := g.result.(T)
	it.Barrier()
	return out
}

// InclusiveScanOver returns v[0] op ... op v[LocalID()].
func InclusiveScanOver[T any](it *Item, v T, op func(a, b T) T) T {
	g := it.group
	g.exchange[it.local] = v
	it.Barrier()
	if it.IsLeader() {
		acc := g.exchange[0].(T)
		for i := 1; i < g.size; i++ {
			acc = op(acc, g.exchange[i].(T))
			g.exchange[i] = acc
		}
	}
	it.Barrier()
	out := g.exchange[it.local].(T)
	it.Barrier()
	return out
}

// ExclusiveScanOver returns identity op v[0] op ... op v[LocalID()-1].
func ExclusiveScanOver[T any](it *Item, v T, identity T, op func(a, b T) T) T {
	g := it.group
	g.exchange[it.local] = v
	it.Barrier()
	if it.IsLeader() {
		acc := identity
		for i := 0; i < g.size; i++ {
			next := op(acc, g.exchange[i].(T))
			g.exchange[i] = acc
			acc = next
		}
	}
	it.Barrier()
	out := g.exchange[it.local].(T)
	it.Barrier()
	return out
}
