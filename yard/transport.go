package yard

import "strings"

// Modos de transporte inferidos da vistoria
const (
	ModoFerroviario = "ferroviaria"
	ModoRodoviario  = "rodoviaria"
	ModoIndefinido  = "indefinido"
)

// TransportMode infere o modo pela presença de vagão ou placa.
// Os dois preenchidos (ou nenhum) não permitem decidir.
func TransportMode(vagao, placa string) string {
	hasVagao := strings.TrimSpace(vagao) != ""
	hasPlaca := strings.TrimSpace(placa) != ""

	switch {
	case hasVagao && !hasPlaca:
		return ModoFerroviario
	case hasPlaca && !hasVagao:
		return ModoRodoviario
	default:
		return ModoIndefinido
	}
}
