package engine

import (
	"sort"
	"strings"

	"github.com/eternalApril/moonkv/internal/reply"
)

type commandMetadata struct {
	arity    int      // Arity includes the command name itself, negative means "at least"
	flags    []string // read, write, fast, denyoom, etc
	firstKey int      // 1-based index of the first key
	lastKey  int      // 1-based index of the last key
	step     int      // Step count for finding keys
}

// acceptsArgs checks the argument count, not counting the command name
func (m commandMetadata) acceptsArgs(n int) bool {
	if m.arity >= 0 {
		return n+1 == m.arity
	}
	return n+1 >= -m.arity
}

var (
	commandRegistry = map[string]commandMetadata{
		"PING":     {-1, []string{"fast", "stale"}, 0, 0, 0},
		"GET":      {2, []string{"readonly", "fast"}, 1, 1, 1},
		"SET":      {-3, []string{"write", "denyoom"}, 1, 1, 1},
		"SETEX":    {4, []string{"write", "denyoom"}, 1, 1, 1},
		"DEL":      {-2, []string{"write"}, 1, -1, 1},
		"EXISTS":   {-2, []string{"readonly", "fast"}, 1, -1, 1},
		"TYPE":     {2, []string{"readonly", "fast"}, 1, 1, 1},
		"INCR":     {2, []string{"write", "denyoom", "fast"}, 1, 1, 1},
		"INCRBY":   {3, []string{"write", "denyoom", "fast"}, 1, 1, 1},
		"DECR":     {2, []string{"write", "denyoom", "fast"}, 1, 1, 1},
		"RPUSH":    {-3, []string{"write", "denyoom", "fast"}, 1, 1, 1},
		"LLEN":     {2, []string{"readonly", "fast"}, 1, 1, 1},
		"LPOP":     {2, []string{"write", "fast"}, 1, 1, 1},
		"HSET":     {-4, []string{"write", "denyoom", "fast"}, 1, 1, 1},
		"HGET":     {3, []string{"readonly", "fast"}, 1, 1, 1},
		"EXPIRE":   {3, []string{"write", "fast"}, 1, 1, 1},
		"TTL":      {2, []string{"readonly", "fast"}, 1, 1, 1},
		"PTTL":     {2, []string{"readonly", "fast"}, 1, 1, 1},
		"PERSIST":  {2, []string{"write", "fast"}, 1, 1, 1},
		"FLUSHALL": {-1, []string{"write"}, 0, 0, 0},
		"COMMAND":  {-1, []string{"random", "loading", "stale"}, 0, 0, 0},
	}
)

// commandDoc stores a description for the command
type commandDoc struct {
	summary    string
	complexity string
	group      string
}

// commandDocsRegistry documentation registry
var commandDocsRegistry = map[string]commandDoc{
	"PING":     {"Ping the engine.", "O(1)", "connection"},
	"GET":      {"Get the value of a key.", "O(1)", "string"},
	"SET":      {"Set the string value of a key.", "O(1)", "string"},
	"SETEX":    {"Set the value and expiration of a key.", "O(1)", "string"},
	"DEL":      {"Delete a key.", "O(N) where N is the number of keys that will be removed.", "generic"},
	"EXISTS":   {"Determine if a key exists.", "O(N) where N is the number of keys to check.", "generic"},
	"TYPE":     {"Determine the type stored at key.", "O(1)", "generic"},
	"INCR":     {"Increment the integer value of a key by one.", "O(1)", "string"},
	"INCRBY":   {"Increment the integer value of a key by the given amount.", "O(1)", "string"},
	"DECR":     {"Decrement the integer value of a key by one.", "O(1)", "string"},
	"RPUSH":    {"Append one or multiple values to a list.", "O(N) where N is the number of elements to push.", "list"},
	"LLEN":     {"Get the length of a list.", "O(1)", "list"},
	"LPOP":     {"Remove and get the first element in a list.", "O(1)", "list"},
	"HSET":     {"Set the string value of a hash field.", "O(N) where N is the number of fields being set.", "hash"},
	"HGET":     {"Get the value of a hash field.", "O(1)", "hash"},
	"EXPIRE":   {"Set a key's time to live in seconds.", "O(1)", "generic"},
	"TTL":      {"Get the time to live for a key in seconds.", "O(1)", "generic"},
	"PTTL":     {"Get the time to live for a key in milliseconds.", "O(1)", "generic"},
	"PERSIST":  {"Remove the expiration from a key.", "O(1)", "generic"},
	"FLUSHALL": {"Remove all keys.", "O(N) where N is the total number of keys.", "server"},
	"COMMAND":  {"Get array of command details.", "O(N) where N is the number of commands to look up.", "server"},
}

func makeFlagsArray(flags []string) reply.Value {
	vals := make([]reply.Value, len(flags))
	for i, f := range flags {
		vals[i] = reply.MakeStatus(f)
	}
	return reply.MakeArray(vals)
}

func makeInfoCmdArray(name string) []reply.Value {
	meta := commandRegistry[name]
	return []reply.Value{
		reply.MakeBulk(strings.ToLower(name)),
		reply.MakeInteger(int64(meta.arity)),
		makeFlagsArray(meta.flags),
		reply.MakeInteger(int64(meta.firstKey)),
		reply.MakeInteger(int64(meta.lastKey)),
		reply.MakeInteger(int64(meta.step)),
	}
}

func sortedCommandNames() []string {
	names := make([]string, 0, len(commandRegistry))
	for name := range commandRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func getAllCommands() reply.Value {
	names := sortedCommandNames()
	cmdArray := make([]reply.Value, 0, len(names))
	for _, name := range names {
		cmdArray = append(cmdArray, reply.MakeArray(makeInfoCmdArray(name)))
	}
	return reply.MakeArray(cmdArray)
}

// getCommandsDocs returns documentation for specified commands or all commands
// Format: [Name, [Summary, val, Group, val...], Name, [...]]
func getCommandsDocs(args []string) reply.Value {
	var targets []string

	if len(args) == 0 {
		targets = sortedCommandNames()
	} else {
		targets = make([]string, 0, len(args))
		for _, arg := range args {
			targets = append(targets, strings.ToUpper(arg))
		}
	}

	result := make([]reply.Value, 0, len(targets)*2)

	for _, name := range targets {
		doc, ok := commandDocsRegistry[name]
		if !ok {
			continue
		}

		result = append(result, reply.MakeBulk(strings.ToLower(name)))

		props := []reply.Value{
			reply.MakeBulk("summary"),
			reply.MakeBulk(doc.summary),
			reply.MakeBulk("group"),
			reply.MakeBulk(doc.group),
			reply.MakeBulk("complexity"),
			reply.MakeBulk(doc.complexity),
		}

		result = append(result, reply.MakeArray(props))
	}

	return reply.MakeArray(result)
}
