package proxyconfig

// Resolve returns the first non-nil configuration in the order explicit,
// active, builtin. The result is a copy; inputs are never mutated.
func Resolve(explicit, active, builtin *Configuration) (*Configuration, error) {
	cfg, _, err := ResolveWithTrace(explicit, active, builtin)
	return cfg, err
}

// ResolveWithTrace behaves like Resolve and also reports which candidate won.
func ResolveWithTrace(explicit, active, builtin *Configuration) (*Configuration, Trace, error) {
	stack, err := NewStack(
		Layer{Scope: Scope{Name: ScopeExplicit, Label: "Session argument", Priority: ScopePriorityExplicit}, Configuration: explicit},
		Layer{Scope: Scope{Name: ScopeActive, Label: "Active default", Priority: ScopePriorityActive}, Configuration: active},
		Layer{Scope: Scope{Name: ScopeBuiltin, Label: "Built-in", Priority: ScopePriorityBuiltin}, Configuration: builtin},
	)
	if err != nil {
		return nil, Trace{}, err
	}
	return stack.Select()
}
