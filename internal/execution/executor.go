// Package execution runs external diagnostic commands under a configurable
// strategy. Every strategy binds stdin to the null device and treats exit
// status 0 as success. No timeout is enforced on child processes.
package execution

import (
	"time"

	"codeberg.org/mutker/coreprobe/internal/logger"
)

// DefaultSearchPaths are probed by the existence-check strategy.
var DefaultSearchPaths = []string{"/bin", "/usr/bin", "/sbin", "/usr/sbin"}

// Runner runs a command and returns its standard output.
type Runner interface {
	Execute(command string, args ...string) (string, error)
}

// Observer is notified after every command run.
type Observer interface {
	CommandExecuted(method Method, command string, elapsed time.Duration, err error)
}

// Request is a single command invocation. An empty Method uses the
// executor's configured one.
type Request struct {
	Method  Method
	Command string
	Args    []string
}

// Result holds the captured output of a finished command.
type Result struct {
	Success bool
	Stdout  string
	Stderr  string
}

type Option func(*Executor)

// WithSearchPaths overrides the directories probed by the existence check.
func WithSearchPaths(paths []string) Option {
	return func(e *Executor) {
		if len(paths) > 0 {
			e.searchPaths = append([]string(nil), paths...)
		}
	}
}

// WithObserver attaches an observer to every run.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		e.observer = o
	}
}

// Executor runs commands with one configured Method.
type Executor struct {
	method      Method
	searchPaths []string
	observer    Observer
	log         logger.Logger
}

func New(method Method, opts ...Option) *Executor {
	e := &Executor{
		method:      method,
		searchPaths: DefaultSearchPaths,
		log:         logger.WithComponent("execution"),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Executor) Method() Method {
	return e.method
}

// Execute runs command with the configured method and returns its stdout.
func (e *Executor) Execute(command string, args ...string) (string, error) {
	res, err := e.Run(Request{Command: command, Args: args})
	if err != nil {
		return "", err
	}

	return res.Stdout, nil
}

// Run executes req. On failure the returned Result, when non-nil, still
// carries whatever was captured.
func (e *Executor) Run(req Request) (*Result, error) {
	method := req.Method
	if method == "" {
		method = e.method
	}

	if req.Command == "" {
		return nil, errFactory.New(ErrEmptyCommand)
	}

	e.log.Debug().
		Str("method", method.String()).
		Str("command", req.Command).
		Strs("args", req.Args).
		Msg("Executing command")

	start := time.Now()
	res, err := e.dispatch(method, req)
	elapsed := time.Since(start)

	if e.observer != nil {
		e.observer.CommandExecuted(method, req.Command, elapsed, err)
	}

	if err != nil {
		e.log.Info().
			Err(err).
			Str("method", method.String()).
			Str("command", req.Command).
			Msg("Command failed")

		return res, err
	}

	e.log.Debug().
		Str("command", req.Command).
		Dur("elapsed", elapsed).
		Int("stdout_bytes", len(res.Stdout)).
		Msg("Command finished")

	return res, nil
}

func (e *Executor) dispatch(method Method, req Request) (*Result, error) {
	switch method {
	case Direct:
		return runDirect(req.Command, req.Args)
	case Shell:
		return runShell(CommandLine(req.Command, req.Args))
	case ForkExec:
		return runForkExec(req.Command, req.Args)
	case ForkSyscall:
		return runPipeBridge(CommandLine(req.Command, req.Args))
	case ExistenceCheck:
		return e.runExistenceCheck(req.Command), nil
	default:
		return nil, errFactory.WithData(ErrUnknownMethod, string(method))
	}
}

func completed(command string, stdout, stderr []byte, exitErr *ExitError) (*Result, error) {
	res := &Result{
		Success: exitErr == nil,
		Stdout:  decodeText(stdout),
		Stderr:  decodeText(stderr),
	}
	if exitErr != nil {
		exitErr.Stderr = res.Stderr
		return res, exitFailure(command, exitErr)
	}

	return res, nil
}
