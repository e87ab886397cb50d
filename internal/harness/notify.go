package harness

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/akshayaggarwal99/seobridge/internal/proto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Notifier observes invocations. Logger is the invocation label.
type Notifier interface {
	Info(logger, msg string)
	Error(logger, msg string)
}

// LogNotifier writes notifications to a zerolog logger. The zero value uses the
// global logger.
type LogNotifier struct {
	Logger *zerolog.Logger
}

func (n LogNotifier) logger() *zerolog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return &log.Logger
}

func (n LogNotifier) Info(logger, msg string) {
	n.logger().Info().Str("logger", logger).Msg(msg)
}

func (n LogNotifier) Error(logger, msg string) {
	n.logger().Error().Str("logger", logger).Msg(msg)
}

// StreamNotifier writes each notification as one MCP notifications/message
// JSON-RPC line.
type StreamNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStreamNotifier creates a notifier writing to w.
func NewStreamNotifier(w io.Writer) *StreamNotifier {
	return &StreamNotifier{w: w}
}

func (n *StreamNotifier) Info(logger, msg string) {
	n.write(proto.LevelInfo, logger, msg)
}

func (n *StreamNotifier) Error(logger, msg string) {
	n.write(proto.LevelError, logger, msg)
}

func (n *StreamNotifier) write(level, logger, msg string) {
	b, err := json.Marshal(proto.NewLogNotification(level, logger, msg))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode notification")
		return
	}
	b = append(b, '\n')

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := n.w.Write(b); err != nil {
		log.Warn().Err(err).Msg("Failed to write notification")
	}
}

// Notifiers fans every notification out to each member in order.
type Notifiers []Notifier

func (ns Notifiers) Info(logger, msg string) {
	for _, n := range ns {
		n.Info(logger, msg)
	}
}

func (ns Notifiers) Error(logger, msg string) {
	for _, n := range ns {
		n.Error(logger, msg)
	}
}
