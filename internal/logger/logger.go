// Package logger is the process-wide structured logger. It writes sampled
// records through log/slog, as JSON lines or over OTLP when OTEL_ENABLED is set,
// and keeps counters for the metrics package.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

type Level = slog.Level

const (
	LevelTrace   Level = -8
	LevelDebug         = slog.LevelDebug
	LevelInfo          = slog.LevelInfo
	LevelWarning       = slog.LevelWarn
	LevelError         = slog.LevelError
	LevelFatal   Level = 12
)

var levelsByName = map[string]Level{
	"TRACE":   LevelTrace,
	"DEBUG":   LevelDebug,
	"":        LevelInfo,
	"INFO":    LevelInfo,
	"WARN":    LevelWarning,
	"WARNING": LevelWarning,
	"ERROR":   LevelError,
	"FATAL":   LevelFatal,
}

var (
	Logger *slog.Logger

	level      = new(slog.LevelVar)
	sampleRate atomic.Int32 // keep one warning/error in sampleRate
	exit       = os.Exit
)

// Counters are bumped on every call, including sampled-out lines
var (
	TotalErrors        atomic.Int64
	TotalWarnings      atomic.Int64
	Total5xxErrors     atomic.Int64
	Total4xxErrors     atomic.Int64
	Total400Errors     atomic.Int64
	Total404Errors     atomic.Int64
	Total429Errors     atomic.Int64
	SlowRequests       atomic.Int64
	DecodeMismatches   atomic.Int64
	RuleEvaluationErrs atomic.Int64
)

func init() {
	if lvl, err := ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		level.Set(lvl)
	}

	sampleRate.Store(100)
	if rate, err := strconv.Atoi(os.Getenv("ERROR_SAMPLE_RATE")); err == nil {
		SetSampleRate(rate)
	}

	if err := Setup(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "falling back to JSON logging: %v\n", err)
	}
}

// SetOutput points the logger at w and makes it the slog default
func SetOutput(w io.Writer) {
	Logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: renameLevel,
	}))
	slog.SetDefault(Logger)
}

func renameLevel(_ []string, a slog.Attr) slog.Attr {
	if lvl, ok := a.Value.Any().(slog.Level); ok && a.Key == slog.LevelKey {
		a.Value = slog.StringValue(LevelName(lvl))
	}
	return a
}

// SetSampleRate keeps one in rate warnings and errors. Values below 1 keep all.
func SetSampleRate(rate int) {
	sampleRate.Store(int32(max(rate, 1)))
}

func SetLevel(lvl Level) { level.Set(lvl) }

func GetLevel() Level { return level.Level() }

// ParseLevel is case-insensitive. Unknown names return INFO and an error.
func ParseLevel(name string) (Level, error) {
	if lvl, ok := levelsByName[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return lvl, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

func LevelName(lvl Level) string {
	switch lvl {
	case LevelTrace:
		return "TRACE"
	case LevelFatal:
		return "FATAL"
	default:
		return lvl.String()
	}
}

func sampled() bool {
	rate := sampleRate.Load()
	return rate <= 1 || rand.Int31n(rate) == 0
}

func Trace(msg string, args ...any) {
	Logger.Log(context.Background(), LevelTrace, msg, args...)
}

func Debug(msg string, args ...any) { Logger.Debug(msg, args...) }

func Info(msg string, args ...any) { Logger.Info(msg, args...) }

// Warn is sampled
func Warn(msg string, args ...any) {
	TotalWarnings.Add(1)
	if sampled() {
		Logger.Warn(msg, args...)
	}
}

// Error is sampled
func Error(msg string, args ...any) {
	TotalErrors.Add(1)
	if sampled() {
		Logger.Error(msg, args...)
	}
}

// Fatal is never sampled and exits with status 1
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	exit(1)
}

// DecodeMismatch counts a value the decoder passed through unchanged and
// records it at debug level.
func DecodeMismatch(scope, path, expected string, actual any) {
	DecodeMismatches.Add(1)
	Logger.Debug("decode mismatch passed through",
		"scope", scope,
		"path", path,
		"expected", expected,
		"actualType", fmt.Sprintf("%T", actual),
	)
}

func RuleEvaluationFailed(tenantID, ruleID string, err error) {
	RuleEvaluationErrs.Add(1)
	Warn("rule evaluation failed", "tenantId", tenantID, "ruleId", ruleID, "error", err)
}

// The HTTP helpers only count. The request middleware writes the log line itself.
func ErrorHttp5xx() {
	Total5xxErrors.Add(1)
	TotalErrors.Add(1)
}

func WarnHttp4xx(status int) {
	Total4xxErrors.Add(1)
	TotalWarnings.Add(1)

	byStatus := map[int]*atomic.Int64{400: &Total400Errors, 404: &Total404Errors, 429: &Total429Errors}
	if c, ok := byStatus[status]; ok {
		c.Add(1)
	}
}

func WarnSlowRequest() {
	SlowRequests.Add(1)
	TotalWarnings.Add(1)
}
