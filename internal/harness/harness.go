// Package harness runs tool invocations against the SEO data API.
//
// An invocation is three steps: validate the arguments, invoke the API and
// format the response. The harness runs them in order, reports progress to a
// Notifier and turns every failure, panics included, into an error Result
// whose text starts with the failure's category. Nothing escapes Run.
package harness

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/akshayaggarwal99/seobridge/internal/proto"
	"github.com/akshayaggarwal99/seobridge/internal/seoapi"
	"github.com/rs/zerolog/log"
)

var errNoInvoke = errors.New("invocation has no invoke step")

// Invocation is a single tool call.
type Invocation struct {
	// Label names the invocation in notifications, usually the API method
	Label string

	// Args are the caller's arguments. Validate may rewrite them in place.
	Args Args

	// Validate checks and normalizes Args (optional)
	Validate func(args Args) error

	// Invoke performs the API call
	Invoke func(ctx context.Context, args Args) (*seoapi.Response, error)

	// Format renders the response (default: FormatJSON)
	Format func(resp *seoapi.Response, args Args) (string, error)
}

// Result is what the caller gets back.
type Result struct {
	Text    string
	IsError bool

	// Failure is set when IsError is
	Failure Failure
}

// ToolResult renders the result as an MCP tool result.
func (r Result) ToolResult() *proto.ToolResult {
	return proto.NewTextResult(r.Text, r.IsError)
}

// Harness runs invocations. It is safe for concurrent use if its Notifier is.
type Harness struct {
	notifier Notifier
}

// New creates a harness reporting to n. A nil notifier logs through zerolog.
func New(n Notifier) *Harness {
	if n == nil {
		n = LogNotifier{}
	}
	return &Harness{notifier: n}
}

// Run executes inv and never panics.
func (h *Harness) Run(ctx context.Context, inv Invocation) Result {
	h.notifyInfo(inv.Label, "Starting "+inv.Label)

	text, err := h.execute(ctx, inv)
	if err != nil {
		f, msg := describe(err)
		h.notifyError(inv.Label, msg)
		return Result{Text: msg, IsError: true, Failure: f}
	}

	h.notifyInfo(inv.Label, "Completed "+inv.Label)
	return Result{Text: text}
}

func (h *Harness) execute(ctx context.Context, inv Invocation) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("label", inv.Label).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Invocation panicked")
			err = &UnexpectedFailure{Err: fmt.Errorf("panic: %v", r), Panic: r}
		}
	}()

	args := inv.Args
	if args == nil {
		args = Args{}
	}

	if inv.Validate != nil {
		if err := inv.Validate(args); err != nil {
			return "", err
		}
	}

	if inv.Invoke == nil {
		return "", errNoInvoke
	}
	resp, err := inv.Invoke(ctx, args)
	if err != nil {
		return "", err
	}

	format := inv.Format
	if format == nil {
		format = FormatJSON
	}
	return format(resp, args)
}

// describe classifies err and renders the caller-facing message. An error
// whose Error method panics becomes an UnexpectedFailure.
func describe(err error) (f Failure, msg string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("type", fmt.Sprintf("%T", err)).Interface("panic", r).Msg("Error could not be rendered")
			f = &UnexpectedFailure{Err: fmt.Errorf("unprintable %T: %v", err, r), Panic: r}
			msg = KindUnexpected.Prefix() + ": " + f.Error()
		}
	}()

	f = Classify(err)
	return f, f.Kind().Prefix() + ": " + f.Error()
}

func (h *Harness) notifyInfo(logger, msg string) {
	defer recoverNotify(logger)
	h.notifier.Info(logger, msg)
}

func (h *Harness) notifyError(logger, msg string) {
	defer recoverNotify(logger)
	h.notifier.Error(logger, msg)
}

func recoverNotify(logger string) {
	if r := recover(); r != nil {
		log.Warn().Str("logger", logger).Interface("panic", r).Msg("Notifier panicked")
	}
}
