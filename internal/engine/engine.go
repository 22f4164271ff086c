// Package engine is the in-process command interface of the keyspace.
// Transports decode client requests into calls of the typed API or Execute,
// and encode the results back.
package engine

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/eternalApril/moonkv/internal/config"
	"github.com/eternalApril/moonkv/internal/reply"
	"github.com/eternalApril/moonkv/internal/storage"
	"go.uber.org/zap"
)

// maxGCRounds bounds how many times one tick may repeat sampling
const maxGCRounds = 16

// CommandObserver is notified after every known command run through Execute
type CommandObserver interface {
	ObserveCommand(name string, failed bool)
}

// Engine coordinates the execution of commands and manages the background tasks of the keyspace
type Engine struct {
	commands map[string]command // Registry of available commands (the key is the command name in uppercase)
	storage  storage.Storage    // Underlying sharded keyspace
	gc       config.GCConfig    // Active expiration settings
	observer CommandObserver
	stopGC   chan struct{} // Channel for the background GC stop signal
	gcDone   chan struct{} // Closed when the GC goroutine has returned
	stopOnce sync.Once     // Ensures that the stop happens only once
	logger   *zap.Logger
}

// Option customizes an Engine
type Option func(e *Engine)

// WithObserver reports every executed command to o
func WithObserver(o CommandObserver) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine initializes the engine, registers the commands, and
// if enabled in the config, starts background cleanup of outdated keys
func NewEngine(s storage.Storage, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, errors.New("engine requires a storage")
	}
	if cfg == nil {
		return nil, errors.New("engine requires a config")
	}
	if err := cfg.GC.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		commands: make(map[string]command),
		storage:  s,
		gc:       cfg.GC,
		stopGC:   make(chan struct{}),
		gcDone:   make(chan struct{}),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.registerBasicCommand()

	if e.gc.Enabled {
		go e.startGCLoop()
	} else {
		close(e.gcDone)
	}

	e.logger.Info("engine started",
		zap.Bool("gc_enabled", e.gc.Enabled),
		zap.Duration("gc_interval", e.gc.Interval),
		zap.Int("gc_samples", e.gc.SamplesPerCheck),
	)

	return e, nil
}

// startGCLoop triggers the active expiration mechanism
func (e *Engine) startGCLoop() {
	defer close(e.gcDone)

	ticker := time.NewTicker(e.gc.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.activeExpireCycle()
		case <-e.stopGC:
			return
		}
	}
}

// activeExpireCycle samples keys with a deadline and repeats right away
// while the expired share stays above the threshold
func (e *Engine) activeExpireCycle() {
	for round := 0; round < maxGCRounds; round++ {
		ratio := e.storage.DeleteExpired(e.gc.SamplesPerCheck)

		if ratio > 0 && e.logger.Core().Enabled(zap.DebugLevel) {
			e.logger.Debug("GC delete expired",
				zap.Float64("expired_ratio", ratio),
				zap.Int("round", round),
			)
		}

		if ratio <= e.gc.MatchThreshold {
			return
		}

		select {
		case <-e.stopGC:
			return
		default:
		}
	}
}

// register adds a new command to the engine. The command name is uppercase
func (e *Engine) register(name string, cmd command) {
	e.commands[strings.ToUpper(name)] = cmd
}

// Execute finds the command by name and executes it with the passed arguments.
// Arity is checked against the command table before the handler runs
func (e *Engine) Execute(name string, args []string) reply.Value {
	name = strings.ToUpper(name)

	if e.logger.Core().Enabled(zap.DebugLevel) {
		e.logger.Debug("executing command",
			zap.String("cmd", name),
			zap.Int("args_count", len(args)),
		)
	}

	cmd, ok := e.commands[name]
	if !ok {
		return reply.MakeError("ERR unknown command '" + name + "'")
	}

	var res reply.Value
	if meta, ok := commandRegistry[name]; ok && !meta.acceptsArgs(len(args)) {
		res = reply.MakeErrorWrongNumberOfArguments(strings.ToLower(name))
	} else {
		res = cmd.execute(&request{name: name, args: args})
	}

	if e.observer != nil {
		e.observer.ObserveCommand(name, res.IsError())
	}

	return res
}

// Shutdown stops the background services of the engine. Safe to call more than once
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		close(e.stopGC)
		<-e.gcDone
		e.logger.Info("GC background process stopped")
	})
}
