package database

import (
	"database/sql"
	"strings"
	"time"
)

// A aplicação web grava datas em formatos diferentes conforme a versão
// (datetime.now() do Python, CURRENT_TIMESTAMP do SQLite, ISO com fuso).
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ParseTimestamp converte o valor cru de uma coluna de data em time.Time.
// Valores vazios ou ilegíveis viram o tempo zero.
func ParseTimestamp(value any) time.Time {
	switch v := value.(type) {
	case time.Time:
		return v
	case *time.Time:
		if v == nil {
			return time.Time{}
		}
		return *v
	case []byte:
		return parseTimestampString(string(v))
	case string:
		return parseTimestampString(v)
	case int64:
		// epoch em segundos
		return time.Unix(v, 0).UTC()
	default:
		return time.Time{}
	}
}

func parseTimestampString(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// FormatTimestamp formata para exibição ("-" para tempo zero)
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func nullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
