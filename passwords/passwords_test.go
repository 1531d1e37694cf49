package passwords

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"patiotools/database"
	"patiotools/internal/apperrors"
)

// hasher barato para testes
var testHasher = Hasher{Iterations: 1000, SaltLength: DefaultSaltLength}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   Algorithm
	}{
		{"empty", "", AlgEmpty},
		{"blank", "   ", AlgEmpty},
		{"scrypt", "scrypt:32768:8:1$abc$def", AlgScrypt},
		{"pbkdf2", "pbkdf2:sha256:600000$abc$def", AlgPBKDF2},
		{"bcrypt", "$2b$12$abcdefghijklmnopqrstuu", AlgBcrypt},
		{"sha1 hex", "5baa61e4c9b93f3f0682250b6cf8331b7ee68fd8", AlgSHA1},
		{"sha1 upper", "5BAA61E4C9B93F3F0682250B6CF8331B7EE68FD8", AlgSHA1},
		{"sha256 hex", "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8", AlgSHA256},
		{"werkzeug hmac", "sha1$salt$abcdef", AlgHMAC},
		{"plaintext", "senha123", AlgUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.stored))
		})
	}
}

func TestVerify_KnownVectors(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		password string
	}{
		{"sha1", "5baa61e4c9b93f3f0682250b6cf8331b7ee68fd8", "password"},
		{"sha256", "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8", "password"},
		// RFC 6070
		{"pbkdf2 sha1 1 iteration", "pbkdf2:sha1:1$salt$0c60c80f961f0e71f3a9b524af6012062fe037a6", "password"},
		{"pbkdf2 sha1 2 iterations", "pbkdf2:sha1:2$salt$ea6c014dc72d6f8ccd1ed92ace1d41f0d8de8957", "password"},
		// RFC 7914
		{"scrypt", "scrypt:1024:8:16$NaCl$fdbabe1c9d3472007856e7190d01e9fe7c6ad7cbc8237830e77376634b3731622eaf30d92e22a3886ff109279d9830dac727afb94a83ee6d8360cbdfa2cc0640", "password"},
		{"plaintext", "senha123", "senha123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Verify(tt.stored, tt.password)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = Verify(tt.stored, tt.password+"x")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestVerify_LegacyHMACAndBcrypt(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("Xy12"))
	mac.Write([]byte("segredo"))
	stored := "sha256$Xy12$" + hex.EncodeToString(mac.Sum(nil))

	ok, err := Verify(stored, "segredo")
	require.NoError(t, err)
	assert.True(t, ok)

	hashed, err := bcrypt.GenerateFromPassword([]byte("segredo"), bcrypt.MinCost)
	require.NoError(t, err)
	ok, err = Verify(string(hashed), "segredo")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = Verify(string(hashed), "outra")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_MalformedHashes(t *testing.T) {
	for _, stored := range []string{
		"pbkdf2:sha256:600000",
		"pbkdf2:md5:1000$salt$abcd",
		"pbkdf2:sha256:abc$salt$abcd",
		"pbkdf2:sha256:1000$salt$zz",
		"scrypt:0:8:1$salt$abcd",
		"scrypt:16384:8$salt$abcd",
	} {
		t.Run(stored, func(t *testing.T) {
			_, err := Verify(stored, "password")
			require.Error(t, err)
			assert.Equal(t, 2, apperrors.ExitCode(err))
		})
	}
}

func TestGenerate_RoundTrip(t *testing.T) {
	for _, password := range []string{"password", "senha com espaço", "çãõ€", strings.Repeat("x", 200)} {
		stored, err := testHasher.Generate(password)
		require.NoError(t, err)

		assert.Equal(t, AlgPBKDF2, Classify(stored))
		assert.True(t, strings.HasPrefix(stored, "pbkdf2:sha256:1000$"))
		parts := strings.Split(stored, "$")
		require.Len(t, parts, 3)
		assert.Len(t, parts[1], DefaultSaltLength)
		assert.Len(t, parts[2], 64)

		ok, err := Verify(stored, password)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	a, err := testHasher.Generate("password")
	require.NoError(t, err)
	b, err := testHasher.Generate("password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "salt must differ")
}

func TestGenerate_DefaultIterations(t *testing.T) {
	stored, err := Generate("password")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored, "pbkdf2:sha256:600000$"))
}

func newAuditDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = database.PatchSchema(ctx, db, false)
	require.NoError(t, err)

	modern, err := testHasher.Generate("admin123")
	require.NoError(t, err)

	_, err = db.Conn().Exec(`
		INSERT INTO usuarios (id, username, password_hash, nivel) VALUES
			(1, 'admin', ?, 'admin'),
			(2, 'joao', ?, 'operador'),
			(3, 'maria', ?, 'vistoriador'),
			(4, 'pedro', '', 'operador'),
			(5, 'ana', ?, 'operador')
	`, modern, LegacySHA1("senha123"), LegacySHA1("desconhecida"), "pbkdf2:sha256:1000$salt$"+strings.Repeat("0", 64))
	require.NoError(t, err)
	return db
}

func findUser(t *testing.T, report *AuditReport, username string) UserAudit {
	t.Helper()
	for _, u := range report.Users {
		if u.Username == username {
			return u
		}
	}
	t.Fatalf("user %s not in report", username)
	return UserAudit{}
}

func TestAudit_DryRun(t *testing.T) {
	ctx := context.Background()
	db := newAuditDB(t)

	report, err := Audit(ctx, db, AuditOptions{Candidates: []string{"senha123", "admin123"}, Hasher: testHasher})
	require.NoError(t, err)
	assert.False(t, report.Applied)
	assert.Equal(t, 2, report.ByAlgorithm[AlgSHA1])
	assert.Equal(t, 2, report.ByAlgorithm[AlgPBKDF2])
	assert.Equal(t, 1, report.ByAlgorithm[AlgEmpty])

	assert.Equal(t, ActionOK, findUser(t, report, "admin").Action)
	assert.True(t, findUser(t, report, "admin").MatchedCandidate)
	assert.Equal(t, ActionUpgrade, findUser(t, report, "joao").Action)
	assert.Equal(t, ActionReview, findUser(t, report, "maria").Action)
	assert.Equal(t, ActionReview, findUser(t, report, "pedro").Action)
	assert.Equal(t, ActionOK, findUser(t, report, "ana").Action)
	assert.Equal(t, 1, report.Count(ActionUpgrade))

	var stored string
	require.NoError(t, db.Conn().QueryRow(`SELECT password_hash FROM usuarios WHERE username = 'joao'`).Scan(&stored))
	assert.Equal(t, LegacySHA1("senha123"), stored)
}

func TestAudit_ApplyRegeneratesAndResets(t *testing.T) {
	ctx := context.Background()
	db := newAuditDB(t)

	report, err := Audit(ctx, db, AuditOptions{
		Candidates:    []string{"senha123"},
		UserPasswords: map[string]string{"maria": "nova456", "pedro": "pedro789"},
		Apply:         true,
		Hasher:        testHasher,
	})
	require.NoError(t, err)
	assert.True(t, report.Applied)
	assert.Equal(t, 3, report.Updated)
	assert.Equal(t, ActionReset, findUser(t, report, "maria").Action)

	for username, password := range map[string]string{"joao": "senha123", "maria": "nova456", "pedro": "pedro789", "admin": "admin123"} {
		var stored string
		require.NoError(t, db.Conn().QueryRow(`SELECT password_hash FROM usuarios WHERE username = ?`, username).Scan(&stored))
		assert.Equal(t, AlgPBKDF2, Classify(stored), username)
		ok, err := Verify(stored, password)
		require.NoError(t, err)
		assert.True(t, ok, username)
	}

	activities, err := database.RecentActivities(ctx, db.Conn(), 10)
	require.NoError(t, err)
	count := 0
	for _, a := range activities {
		if a.Acao == "corrigir_hash_senha" {
			count++
			assert.NotContains(t, a.Descricao, "senha123")
		}
	}
	assert.Equal(t, 3, count)
}

func TestAudit_UnknownUser(t *testing.T) {
	db := newAuditDB(t)

	_, err := Audit(context.Background(), db, AuditOptions{Username: "ninguem"})
	require.Error(t, err)
	assert.Equal(t, 3, apperrors.ExitCode(err))
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	db := newAuditDB(t)

	_, err := db.Conn().Exec(`
		INSERT INTO solicitacoes_senha (usuario_id, username, status) VALUES (2, 'joao', 'pendente'), (3, 'maria', 'pendente')`)
	require.NoError(t, err)

	result, err := ResetPassword(ctx, db, "joao", "trocar123", ResetOptions{Temporary: true, Hasher: testHasher})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.UsuarioID)
	assert.Equal(t, int64(1), result.ResolvedRequests)

	var stored string
	var temporaria, primeiro int
	require.NoError(t, db.Conn().QueryRow(
		`SELECT password_hash, senha_temporaria, primeiro_login FROM usuarios WHERE id = 2`).Scan(&stored, &temporaria, &primeiro))
	ok, err := Verify(stored, "trocar123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, temporaria)
	assert.Equal(t, 1, primeiro)

	var status string
	require.NoError(t, db.Conn().QueryRow(`SELECT status FROM solicitacoes_senha WHERE username = 'maria'`).Scan(&status))
	assert.Equal(t, "pendente", status)
}

func TestResetPassword_LegacyRequestTables(t *testing.T) {
	tests := []struct {
		name     string
		ddl      string
		insert   string
		resolved int64
	}{
		{
			name:     "sem username",
			ddl:      `CREATE TABLE solicitacoes_senha (id INTEGER PRIMARY KEY, usuario_id INTEGER, status TEXT)`,
			insert:   `INSERT INTO solicitacoes_senha (usuario_id, status) VALUES (2, 'pendente'), (3, 'pendente')`,
			resolved: 1,
		},
		{
			name:     "sem usuario_id",
			ddl:      `CREATE TABLE solicitacoes_senha (id INTEGER PRIMARY KEY, username TEXT, status TEXT)`,
			insert:   `INSERT INTO solicitacoes_senha (username, status) VALUES ('joao', 'pendente'), ('joao', 'aprovada')`,
			resolved: 1,
		},
		{
			name:     "sem usuario",
			ddl:      `CREATE TABLE solicitacoes_senha (id INTEGER PRIMARY KEY, status TEXT)`,
			insert:   `INSERT INTO solicitacoes_senha (status) VALUES ('pendente')`,
			resolved: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			db := newAuditDB(t)

			_, err := db.Conn().Exec(`DROP TABLE solicitacoes_senha`)
			require.NoError(t, err)
			_, err = db.Conn().Exec(tt.ddl)
			require.NoError(t, err)
			_, err = db.Conn().Exec(tt.insert)
			require.NoError(t, err)

			result, err := ResetPassword(ctx, db, "joao", "trocar123", ResetOptions{Hasher: testHasher})
			require.NoError(t, err)
			assert.Equal(t, tt.resolved, result.ResolvedRequests)

			var stored string
			require.NoError(t, db.Conn().QueryRow(`SELECT password_hash FROM usuarios WHERE id = 2`).Scan(&stored))
			ok, err := Verify(stored, "trocar123")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestResetPassword_Validation(t *testing.T) {
	db := newAuditDB(t)

	_, err := ResetPassword(context.Background(), db, "joao", "123", ResetOptions{Hasher: testHasher})
	assert.Equal(t, 2, apperrors.ExitCode(err))

	_, err = ResetPassword(context.Background(), db, "ninguem", "trocar123", ResetOptions{Hasher: testHasher})
	assert.Equal(t, 3, apperrors.ExitCode(err))
}
