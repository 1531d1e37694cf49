// Package position trata a notação das posições do pátio. O formato canônico
// é quadra + coluna com dois dígitos + altura ("A01-1"); bancos antigos
// guardam a forma legada sem hífen ("A011").
package position

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"patiotools/internal/apperrors"
	"patiotools/yard"
)

// Limites da notação canônica: coluna 00-29, altura 1-5
const (
	MinColumn = 0
	MaxColumn = 29
	MinHeight = 1
	MaxHeight = 5
)

var (
	legacyPattern    = regexp.MustCompile(`^([A-E])(\d{2})(\d)$`)
	canonicalPattern = regexp.MustCompile(`^([A-E])(\d{2})-(\d)$`)
)

// Kind classificação de um valor de posição
type Kind int

const (
	KindInvalid Kind = iota
	KindCanonical
	KindLegacy
	KindEmpty
	KindInTransit
)

func (k Kind) String() string {
	switch k {
	case KindCanonical:
		return "canonica"
	case KindLegacy:
		return "legada"
	case KindEmpty:
		return "vazia"
	case KindInTransit:
		return "em transito"
	default:
		return "invalida"
	}
}

// Position posição decomposta
type Position struct {
	Bay    string
	Column int
	Height int
}

// String forma canônica
func (p Position) String() string {
	return fmt.Sprintf("%s%02d-%d", p.Bay, p.Column, p.Height)
}

// Valid confere quadra e limites de coluna e altura
func (p Position) Valid() bool {
	return len(p.Bay) == 1 && p.Bay[0] >= 'A' && p.Bay[0] <= 'E' &&
		p.Column >= MinColumn && p.Column <= MaxColumn &&
		p.Height >= MinHeight && p.Height <= MaxHeight
}

func fromMatch(m []string) Position {
	column, _ := strconv.Atoi(m[2])
	height, _ := strconv.Atoi(m[3])
	return Position{Bay: m[1], Column: column, Height: height}
}

// Parse aceita as duas notações, sem ajustar espaços ou maiúsculas
func Parse(s string) (Position, error) {
	m := canonicalPattern.FindStringSubmatch(s)
	if m == nil {
		m = legacyPattern.FindStringSubmatch(s)
	}
	if m == nil {
		return Position{}, apperrors.NewValidationError(fmt.Sprintf("invalid position %q", s), nil)
	}

	p := fromMatch(m)
	if !p.Valid() {
		return Position{}, apperrors.NewValidationError(
			fmt.Sprintf("position %q out of range (coluna %d-%d, altura %d-%d)", s, MinColumn, MaxColumn, MinHeight, MaxHeight), nil)
	}
	return p, nil
}

// Classify identifica o formato do valor gravado
func Classify(s string) Kind {
	switch {
	case strings.TrimSpace(s) == "":
		return KindEmpty
	case yard.IsInTransit(s):
		return KindInTransit
	}

	if m := canonicalPattern.FindStringSubmatch(s); m != nil && fromMatch(m).Valid() {
		return KindCanonical
	}
	if m := legacyPattern.FindStringSubmatch(s); m != nil && fromMatch(m).Valid() {
		return KindLegacy
	}
	return KindInvalid
}

// Normalize converte a notação legada. Qualquer outro valor volta igual, com false.
func Normalize(s string) (string, bool) {
	m := legacyPattern.FindStringSubmatch(s)
	if m == nil {
		return s, false
	}
	p := fromMatch(m)
	if !p.Valid() {
		return s, false
	}
	return p.String(), true
}

// Reason motivo de um valor não ser convertido ("" quando é convertível)
func Reason(s string) string {
	switch Classify(s) {
	case KindLegacy:
		return ""
	case KindCanonical:
		return "ja no formato canonico"
	case KindEmpty:
		return "posicao vazia"
	case KindInTransit:
		return "container em transito"
	}

	if m := legacyPattern.FindStringSubmatch(s); m != nil {
		p := fromMatch(m)
		return fmt.Sprintf("fora dos limites (coluna %d, altura %d)", p.Column, p.Height)
	}
	if m := canonicalPattern.FindStringSubmatch(s); m != nil {
		p := fromMatch(m)
		return fmt.Sprintf("fora dos limites (coluna %d, altura %d)", p.Column, p.Height)
	}
	return "formato desconhecido"
}
