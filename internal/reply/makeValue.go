package reply

import "fmt"

// MakeStatus construct status Value from string
func MakeStatus(s string) Value {
	return Value{
		Kind: KindStatus,
		Str:  s,
	}
}

// MakeOK construct the status Value returned by commands without a payload
func MakeOK() Value {
	return MakeStatus("OK")
}

// MakeError construct Error Value from string
func MakeError(s string) Value {
	return Value{
		Kind: KindError,
		Str:  s,
	}
}

// MakeErrorWrongNumberOfArguments construct Error Value that command had wrong number of arguments for command
func MakeErrorWrongNumberOfArguments(cmd string) Value {
	return MakeError(fmt.Sprintf("ERR wrong number of arguments for '%s' command", cmd))
}

// MakeBulk construct Bulk Value from string
func MakeBulk(s string) Value {
	return Value{
		Kind: KindBulk,
		Str:  s,
	}
}

// MakeNilBulk construct nil Bulk Value
func MakeNilBulk() Value {
	return Value{
		Kind:   KindBulk,
		IsNull: true,
	}
}

// MakeInteger construct Integer Value from int64
func MakeInteger(n int64) Value {
	return Value{
		Kind:    KindInteger,
		Integer: n,
	}
}

// MakeArray creates an array containing the provided elements
func MakeArray(values []Value) Value {
	return Value{
		Kind:  KindArray,
		Array: values,
	}
}
