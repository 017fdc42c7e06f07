package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"gopkg.in/natefinch/lumberjack.v2"
)

const ginKey = "logger"

type ctxKey struct{}

var (
	once sync.Once
	base *slog.Logger
)

type Options struct {
	Component string
	Level     string // debug | info | warn | error
	FilePath  string // empty logs to stdout only

	// Rotation for FilePath. Zero picks 50MB, 3 backups, 7 days.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Output overrides stdout. Tests use it.
	Output io.Writer
}

func (o Options) writer() io.Writer {
	out := o.Output
	if out == nil {
		out = os.Stdout
	}
	if o.FilePath == "" {
		return out
	}
	_ = os.MkdirAll(filepath.Dir(o.FilePath), 0o755)
	return io.MultiWriter(out, &lumberjack.Logger{
		Filename:   o.FilePath,
		MaxSize:    orInt(o.MaxSizeMB, 50),
		MaxBackups: orInt(o.MaxBackups, 3),
		MaxAge:     orInt(o.MaxAgeDays, 7),
	})
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// Init builds the process logger on first call and makes it slog's default.
// Later calls return the same logger.
func Init(opts Options) *slog.Logger {
	once.Do(func() {
		if opts.Component == "" {
			opts.Component = "app"
		}
		h := slog.NewJSONHandler(opts.writer(), &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
		base = slog.New(h).With("component", opts.Component)
		slog.SetDefault(base)
	})
	return base
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Base is the process logger; stdout at info if Init was never called.
func Base() *slog.Logger {
	return Init(Options{})
}

func New(component string) *slog.Logger {
	return Base().With("component", component)
}

func WithCtx(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromCtx returns the logger stored by WithCtx, or Base.
func FromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return Base()
}

// With stores a request-scoped logger on the gin context.
func With(c *gin.Context, l *slog.Logger) {
	c.Set(ginKey, l)
}

func From(c *gin.Context) *slog.Logger {
	if l, ok := c.Value(ginKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return Base()
}

// Ctx carries the request logger into use cases so their lines share the
// request id.
func Ctx(c *gin.Context) context.Context {
	return WithCtx(c.Request.Context(), From(c))
}
