package core

// Blackboard is the externally owned shared store for one agent process.
// Thyra only reads existing values and appends produced objects through this
// narrow interface; persistence and multi-key atomicity are the owner's
// concern.
type Blackboard interface {
	// Get returns the value stored under key, if any.
	Get(key string) (any, bool)
	// Set stores a value under key, replacing any previous value.
	Set(key string, value any)
	// Objects returns the objects produced so far, oldest first.
	Objects() []any
	// AddObject appends a produced object.
	AddObject(v any)
}
