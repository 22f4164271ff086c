package engine

import "github.com/eternalApril/moonkv/internal/reply"

// request carries the arguments of one Execute call, without the command name
type request struct {
	name string
	args []string
}

type command interface {
	execute(req *request) reply.Value
}

type commandFunc func(req *request) reply.Value

func (c commandFunc) execute(req *request) reply.Value {
	return c(req)
}
