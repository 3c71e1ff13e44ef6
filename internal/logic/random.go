package logic

// RandomModule picks the next module to activate. It never returns current;
// the other modules are equally likely. With current == ModuleNone all four
// modules are candidates.
func RandomModule(current Module, r Random) Module {
	if current < 0 || current >= ModuleNone {
		return Module(r.Intn(NumModules))
	}
	next := Module(r.Intn(NumModules - 1))
	if next >= current {
		next++
	}
	return next
}
