package log

import (
	"time"

	"github.com/rs/zerolog"
)

// Attr adds a field to a logger context.
type Attr func(zerolog.Context) zerolog.Context

func Elapsed(d time.Duration) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Int64("elapsed_ms", d.Milliseconds())
	}
}

func Count(n int64) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Int64("count", n)
	}
}

func Batch(n int) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Int("batch", n)
	}
}

// Cursor records the ordering-key value a batch ended at.
func Cursor(v string) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Str("cursor", v)
	}
}

func Index(name string) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Str("index", name)
	}
}

func Endpoint(url string) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Str("endpoint", url)
	}
}
