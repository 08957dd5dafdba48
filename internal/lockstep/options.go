package lockstep

import (
	"io"

	"github.com/charmbracelet/log"
)

type options struct {
	logger   *log.Logger
	onDesync func(Desync)
}

// Option configures a Server or Client.
type Option func(*options)

// WithLogger routes protocol warnings and desync reports to l.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDesyncHandler is called on the client whenever a server checksum does
// not match the local state. Ignored by the server.
func WithDesyncHandler(fn func(Desync)) Option {
	return func(o *options) {
		o.onDesync = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
