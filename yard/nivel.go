package yard

import "strings"

// Níveis de acesso aceitos pela aplicação
const (
	NivelOperador            = "operador"
	NivelVistoriador         = "vistoriador"
	NivelAdmin               = "admin"
	NivelAdminAdministrativo = "admin_administrativo"
)

// ValidNiveis lista na ordem de privilégio crescente
var ValidNiveis = []string{NivelOperador, NivelVistoriador, NivelAdmin, NivelAdminAdministrativo}

// nivelAliases grafias encontradas em bancos editados à mão.
// inventariante foi descontinuado e os usuários passaram a operador.
var nivelAliases = map[string]string{
	"inventariante":  NivelOperador,
	"operadora":      NivelOperador,
	"operacao":       NivelOperador,
	"vistoria":       NivelVistoriador,
	"vistoriadora":   NivelVistoriador,
	"administrador":  NivelAdmin,
	"administradora": NivelAdmin,
	"adm":            NivelAdmin,
	"administrativo": NivelAdminAdministrativo,
	"admin_adm":      NivelAdminAdministrativo,
}

// IsValidNivel compara exatamente, sem normalizar
func IsValidNivel(nivel string) bool {
	for _, valid := range ValidNiveis {
		if nivel == valid {
			return true
		}
	}
	return false
}

// NormalizeNivel mapeia variações para um nível válido; false quando não há mapeamento
func NormalizeNivel(raw string) (string, bool) {
	key := Fold(raw)
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if key == "" {
		return "", false
	}
	if IsValidNivel(key) {
		return key, true
	}
	if mapped, ok := nivelAliases[key]; ok {
		return mapped, true
	}
	return "", false
}
