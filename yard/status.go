// Package yard reúne as regras do pátio usadas pelos relatórios e reparos:
// status de container, disponibilidade para movimentação, modo de transporte
// e níveis de usuário.
package yard

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Status conhecidos, já na forma dobrada
const (
	StatusNoPatio      = "no patio"
	StatusCarregado    = "carregado"
	StatusVistoriado   = "vistoriado"
	StatusDescarregado = "descarregado"
	StatusEmTransito   = "em transito"
)

// PosicaoEmTransito valor sentinela gravado em posicao_atual
const PosicaoEmTransito = "EM TRANSITO"

// KnownStatuses status aceitos pela aplicação
var KnownStatuses = []string{StatusNoPatio, StatusCarregado, StatusVistoriado, StatusDescarregado, StatusEmTransito}

// movementStatuses status que permitem movimentação
var movementStatuses = map[string]bool{
	StatusNoPatio:   true,
	StatusCarregado: true,
}

// Fold remove acentos, passa para minúsculas e colapsa espaços:
// "  No  Pátio " vira "no patio".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// NormalizeStatus devolve o status canônico; false quando não é conhecido
func NormalizeStatus(status string) (string, bool) {
	folded := Fold(strings.ReplaceAll(status, "_", " "))
	for _, known := range KnownStatuses {
		if folded == known {
			return known, true
		}
	}
	return folded, false
}

// IsInTransit posição marcada como em trânsito
func IsInTransit(posicao string) bool {
	return Fold(posicao) == StatusEmTransito
}

// IsAvailableForMovement: status no pátio ou carregado e posição preenchida
// que não seja EM TRANSITO. Posição nula chega aqui como string vazia.
func IsAvailableForMovement(status, posicao string) bool {
	if !movementStatuses[Fold(status)] {
		return false
	}
	if strings.TrimSpace(posicao) == "" {
		return false
	}
	return !IsInTransit(posicao)
}

// UnavailableReason explica por que o container não pode ser movimentado ("" se pode)
func UnavailableReason(status, posicao string) string {
	switch {
	case !movementStatuses[Fold(status)]:
		if strings.TrimSpace(status) == "" {
			return "status vazio"
		}
		return "status " + status
	case strings.TrimSpace(posicao) == "":
		return "sem posicao"
	case IsInTransit(posicao):
		return "em transito"
	}
	return ""
}
