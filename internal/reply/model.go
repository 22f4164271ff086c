// Package reply holds the typed results of the name-based command interface.
// Encoding them for a client is left to the transport that embeds the engine
package reply

// Kind tags the payload of a Value
type Kind byte

const (
	KindStatus Kind = iota + 1
	KindError
	KindInteger
	KindBulk
	KindArray
)

// Value is the result of one command, the payload is selected by Kind
type Value struct {
	Str     string // Status, Error, Bulk
	Array   []Value
	Integer int64
	Kind    Kind
	IsNull  bool // For nil Bulk and nil Array
}

// IsError reports whether the command failed
func (v Value) IsError() bool {
	return v.Kind == KindError
}
