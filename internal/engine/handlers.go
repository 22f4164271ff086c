package engine

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/eternalApril/moonkv/internal/reply"
	"github.com/eternalApril/moonkv/internal/storage"
)

const (
	errSyntax     = "ERR syntax error"
	errNotInteger = "ERR value is not an integer or out of range"
)

// registerBasicCommand fills the registry with standard commands
func (e *Engine) registerBasicCommand() {
	e.register("PING", commandFunc(e.ping))
	e.register("GET", commandFunc(e.get))
	e.register("SET", commandFunc(e.set))
	e.register("SETEX", commandFunc(e.setex))
	e.register("DEL", commandFunc(e.del))
	e.register("EXISTS", commandFunc(e.exists))
	e.register("TYPE", commandFunc(e.typ))
	e.register("INCR", commandFunc(e.incr))
	e.register("INCRBY", commandFunc(e.incrby))
	e.register("DECR", commandFunc(e.decr))
	e.register("RPUSH", commandFunc(e.rpush))
	e.register("LLEN", commandFunc(e.llen))
	e.register("LPOP", commandFunc(e.lpop))
	e.register("HSET", commandFunc(e.hset))
	e.register("HGET", commandFunc(e.hget))
	e.register("EXPIRE", commandFunc(e.expire))
	e.register("TTL", commandFunc(e.ttl))
	e.register("PTTL", commandFunc(e.pttl))
	e.register("PERSIST", commandFunc(e.persist))
	e.register("FLUSHALL", commandFunc(e.flushall))
	e.register("COMMAND", commandFunc(cmd))
}

// errorReply translates storage errors into client-facing messages
func errorReply(name string, err error) reply.Value {
	switch {
	case errors.Is(err, storage.ErrWrongType):
		return reply.MakeError("WRONGTYPE Operation against a key holding the wrong kind of value")
	case errors.Is(err, storage.ErrNotInteger):
		return reply.MakeError(errNotInteger)
	case errors.Is(err, storage.ErrOverflow):
		return reply.MakeError("ERR increment or decrement would overflow")
	case errors.Is(err, storage.ErrInvalidTTL):
		return reply.MakeError("ERR invalid expire time in '" + strings.ToLower(name) + "' command")
	default:
		return reply.MakeError("ERR " + err.Error())
	}
}

func optionalBulk(val string, ok bool) reply.Value {
	if !ok {
		return reply.MakeNilBulk()
	}
	return reply.MakeBulk(val)
}

func boolInteger(b bool) reply.Value {
	if b {
		return reply.MakeInteger(1)
	}
	return reply.MakeInteger(0)
}

// parseTTL parses a positive TTL counted in unit
func parseTTL(name, raw string, unit time.Duration) (time.Duration, *reply.Value) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		v := reply.MakeError(errNotInteger)
		return 0, &v
	}
	if n <= 0 || n > int64(time.Duration(1<<63-1)/unit) {
		v := errorReply(name, storage.ErrInvalidTTL)
		return 0, &v
	}
	return time.Duration(n) * unit, nil
}

func (e *Engine) ping(req *request) reply.Value {
	switch len(req.args) {
	case 0:
		return reply.MakeStatus(e.Ping())
	case 1:
		return reply.MakeBulk(req.args[0])
	default:
		return reply.MakeErrorWrongNumberOfArguments("ping")
	}
}

func (e *Engine) get(req *request) reply.Value {
	return optionalBulk(e.Get(req.args[0]))
}

// set handles SET key value [EX seconds | PX milliseconds | KEEPTTL]
func (e *Engine) set(req *request) reply.Value {
	key, value := req.args[0], req.args[1]

	var (
		opts   storage.SetOptions
		hasTTL bool
	)

	for i := 2; i < len(req.args); i++ {
		switch strings.ToUpper(req.args[i]) {
		case "EX", "PX":
			if hasTTL || i+1 >= len(req.args) {
				return reply.MakeError(errSyntax)
			}

			unit := time.Second
			if strings.EqualFold(req.args[i], "PX") {
				unit = time.Millisecond
			}

			ttl, errReply := parseTTL(req.name, req.args[i+1], unit)
			if errReply != nil {
				return *errReply
			}

			opts.TTL = ttl
			hasTTL = true
			i++
		case "KEEPTTL":
			if hasTTL {
				return reply.MakeError(errSyntax)
			}
			opts.KeepTTL = true
			hasTTL = true
		default:
			return reply.MakeError(errSyntax)
		}
	}

	if err := e.SetWithOptions(key, value, opts); err != nil {
		return errorReply(req.name, err)
	}
	return reply.MakeOK()
}

// setex handles SETEX key seconds value
func (e *Engine) setex(req *request) reply.Value {
	ttl, errReply := parseTTL(req.name, req.args[1], time.Second)
	if errReply != nil {
		return *errReply
	}

	if err := e.SetWithExpiry(req.args[0], req.args[2], ttl); err != nil {
		return errorReply(req.name, err)
	}
	return reply.MakeOK()
}

func (e *Engine) del(req *request) reply.Value {
	return reply.MakeInteger(e.Delete(req.args...))
}

func (e *Engine) exists(req *request) reply.Value {
	return reply.MakeInteger(e.Exists(req.args...))
}

func (e *Engine) typ(req *request) reply.Value {
	return reply.MakeStatus(e.Type(req.args[0]))
}

func (e *Engine) incrReply(req *request, delta int64) reply.Value {
	n, err := e.IncrementBy(req.args[0], delta)
	if err != nil {
		return errorReply(req.name, err)
	}
	return reply.MakeInteger(n)
}

func (e *Engine) incr(req *request) reply.Value {
	return e.incrReply(req, 1)
}

func (e *Engine) decr(req *request) reply.Value {
	return e.incrReply(req, -1)
}

func (e *Engine) incrby(req *request) reply.Value {
	delta, err := strconv.ParseInt(req.args[1], 10, 64)
	if err != nil {
		return reply.MakeError(errNotInteger)
	}
	return e.incrReply(req, delta)
}

func (e *Engine) rpush(req *request) reply.Value {
	n, err := e.PushRight(req.args[0], req.args[1:]...)
	if err != nil {
		return errorReply(req.name, err)
	}
	return reply.MakeInteger(n)
}

func (e *Engine) llen(req *request) reply.Value {
	n, err := e.Length(req.args[0])
	if err != nil {
		return errorReply(req.name, err)
	}
	return reply.MakeInteger(n)
}

func (e *Engine) lpop(req *request) reply.Value {
	val, ok, err := e.PopLeft(req.args[0])
	if err != nil {
		return errorReply(req.name, err)
	}
	return optionalBulk(val, ok)
}

// hset handles HSET key field value [field value ...]
func (e *Engine) hset(req *request) reply.Value {
	pairs := req.args[1:]
	if len(pairs)%2 != 0 {
		return reply.MakeErrorWrongNumberOfArguments("hset")
	}

	fields := make(map[string]string, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		fields[pairs[i]] = pairs[i+1]
	}

	added, err := e.SetFields(req.args[0], fields)
	if err != nil {
		return errorReply(req.name, err)
	}
	return reply.MakeInteger(added)
}

func (e *Engine) hget(req *request) reply.Value {
	val, ok, err := e.GetField(req.args[0], req.args[1])
	if err != nil {
		return errorReply(req.name, err)
	}
	return optionalBulk(val, ok)
}

func (e *Engine) expire(req *request) reply.Value {
	ttl, errReply := parseTTL(req.name, req.args[1], time.Second)
	if errReply != nil {
		return *errReply
	}

	ok, err := e.Expire(req.args[0], ttl)
	if err != nil {
		return errorReply(req.name, err)
	}
	return boolInteger(ok)
}

// expiryReply encodes the remaining lifetime in unit, -2 for a missing key and -1 for no deadline
func (e *Engine) expiryReply(key string, unit time.Duration) reply.Value {
	ttl, status := e.TTL(key)
	if status != storage.ExpActive {
		return reply.MakeInteger(int64(status))
	}

	// round to the nearest unit
	return reply.MakeInteger(int64((ttl + unit/2) / unit))
}

func (e *Engine) ttl(req *request) reply.Value {
	return e.expiryReply(req.args[0], time.Second)
}

func (e *Engine) pttl(req *request) reply.Value {
	return e.expiryReply(req.args[0], time.Millisecond)
}

func (e *Engine) persist(req *request) reply.Value {
	return boolInteger(e.Persist(req.args[0]))
}

// flushall handles FLUSHALL [ASYNC | SYNC]; both modes flush before returning
func (e *Engine) flushall(req *request) reply.Value {
	if len(req.args) > 1 {
		return reply.MakeError(errSyntax)
	}
	if len(req.args) == 1 {
		mode := strings.ToUpper(req.args[0])
		if mode != "ASYNC" && mode != "SYNC" {
			return reply.MakeError(errSyntax)
		}
	}

	e.FlushAll()
	return reply.MakeOK()
}

// cmd handles COMMAND, COMMAND COUNT and COMMAND DOCS [name ...]
func cmd(req *request) reply.Value {
	if len(req.args) == 0 {
		return getAllCommands()
	}

	switch strings.ToUpper(req.args[0]) {
	case "COUNT":
		return reply.MakeInteger(int64(len(commandRegistry)))
	case "DOCS":
		return getCommandsDocs(req.args[1:])
	default:
		return reply.MakeError("ERR unknown subcommand '" + req.args[0] + "'")
	}
}
