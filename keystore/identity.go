package keystore

// freshIdentity allocates a new, comparable identity distinct from every
// other one ever allocated, mirroring Python's id(self._func) fallback in
// KeyFunctionImpl.__id__: each constructed closure is a distinct object with
// a distinct id, even when two closures share the same function literal.
// reflect.ValueOf(fn).Pointer() would instead return the underlying code
// pointer, which is the same for every closure built from one literal
// regardless of what it captures — so two differently-parameterized
// predicates built from the same literal (e.g. wait.sameConversation's
// per-call closure) would collide and share memoized results.
func freshIdentity() any {
	return new(byte)
}
