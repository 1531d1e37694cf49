package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

type runIDKey struct{}

var (
	// Logger logger estruturado global das ferramentas
	Logger *slog.Logger
)

func init() {
	// Por padrão escreve em stderr para não misturar logs com os relatórios em stdout
	Logger = New(os.Stderr, "INFO", "text")
}

// New cria um logger com o nível e formato (text ou json) informados
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup reinicializa o logger global
func Setup(level, format string) {
	Logger = New(os.Stderr, level, format)
	slog.SetDefault(Logger)
}

// ParseLevel converte o nível textual em slog.Level (INFO por padrão)
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRunID guarda o identificador da execução no contexto
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// GetRunID retorna o identificador da execução guardado no contexto
func GetRunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}

// LogError registra um erro junto com o identificador da execução
func LogError(ctx context.Context, err error, msg string, attrs ...any) {
	attrs = append(attrs, "error", err, "run_id", GetRunID(ctx))
	Logger.Error(msg, attrs...)
}

// LogWarn registra um aviso
func LogWarn(ctx context.Context, msg string, attrs ...any) {
	attrs = append(attrs, "run_id", GetRunID(ctx))
	Logger.Warn(msg, attrs...)
}

// LogInfo registra uma mensagem informativa
func LogInfo(ctx context.Context, msg string, attrs ...any) {
	attrs = append(attrs, "run_id", GetRunID(ctx))
	Logger.Info(msg, attrs...)
}

// LogDebug registra uma mensagem de depuração
func LogDebug(ctx context.Context, msg string, attrs ...any) {
	attrs = append(attrs, "run_id", GetRunID(ctx))
	Logger.Debug(msg, attrs...)
}

// LogDuration registra quanto tempo uma operação levou
func LogDuration(ctx context.Context, operation string, duration time.Duration, attrs ...any) {
	attrs = append(attrs, "run_id", GetRunID(ctx), "duration_ms", duration.Milliseconds())
	Logger.Info(operation+" completed", attrs...)
}
