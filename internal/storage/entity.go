package storage

// DataType tags which payload of a Value is in use
type DataType byte

const (
	TypeString DataType = iota + 1
	TypeList
	TypeHash
)

// String returns the name of the type as reported by TYPE
func (t DataType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeHash:
		return "hash"
	default:
		return "none"
	}
}

// Value is the tagged container stored under a key.
// Only the payload selected by Type is meaningful
type Value struct {
	Type DataType
	Str  string
	List []string
	Hash map[string]string
}

func newString(s string) *Value {
	return &Value{Type: TypeString, Str: s}
}

func newList() *Value {
	return &Value{Type: TypeList}
}

func newHash() *Value {
	return &Value{Type: TypeHash, Hash: make(map[string]string)}
}
