// smoke_login faz login na aplicação web e consulta os endpoints JSON,
// para conferir que o servidor responde e a sessão funciona.
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"patiotools/internal/apperrors"
	"patiotools/internal/cli"
	"patiotools/reports"
	"patiotools/webclient"
)

const toolName = "smoke_login"

func main() {
	cli.Main(toolName, run)
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet(toolName, flag.ContinueOnError)
	common := &cli.CommonFlags{}
	fs.StringVar(&common.ConfigPath, "config", "", "arquivo YAML de configuração (padrão: PATIO_CONFIG)")
	baseURL := fs.String("url", "", "endereço da aplicação (padrão: PATIO_BASE_URL)")
	user := fs.String("user", "", "usuário (padrão: PATIO_USERNAME)")
	password := fs.String("password", "", "senha (padrão: PATIO_PASSWORD)")
	endpoints := fs.String("endpoints", "", "endpoints separados por vírgula")
	loginPath := fs.String("login-path", webclient.DefaultLoginPath, "caminho do formulário de login")
	if err := cli.Parse(fs, args); err != nil {
		return err
	}

	ctx, rt, err := cli.Setup(ctx, toolName, common, os.Stdout)
	if err != nil {
		return err
	}
	defer rt.Finish(ctx)

	cfg := rt.Config
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *user != "" {
		cfg.Username = *user
	}
	if *password != "" {
		cfg.Password = *password
	}
	if *endpoints != "" {
		cfg.SmokeEndpoints = strings.Split(*endpoints, ",")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return apperrors.NewValidationError("username and password are required (-user/-password or PATIO_USERNAME/PATIO_PASSWORD)", nil)
	}

	client, err := webclient.New(webclient.Config{
		BaseURL:   cfg.BaseURL,
		LoginPath: *loginPath,
		Timeout:   cfg.HTTPTimeout,
		RateLimit: cfg.HTTPRateLimit,
	})
	if err != nil {
		return err
	}

	p := rt.Printer
	p.Title("Smoke test em %s", client.BaseURL())

	token, err := client.FetchCSRFToken(ctx, *loginPath)
	if err != nil {
		return err
	}
	p.OK("Token CSRF obtido (%d caracteres)", len(token))

	result, err := client.Login(ctx, cfg.Username, cfg.Password)
	if err != nil {
		return err
	}
	if !result.Success {
		p.Fail("Login de %s falhou (HTTP %d): %s", cfg.Username, result.StatusCode, result.Message)
		return apperrors.NewValidationError("login failed", nil).WithContext(cfg.Username)
	}
	p.OK("Login de %s: HTTP %d -> %s", cfg.Username, result.StatusCode, result.Location)

	results := client.Smoke(ctx, cfg.SmokeEndpoints)
	sheet := reports.Sheet{Headers: []string{"Endpoint", "HTTP", "Tempo", "Resultado"}}
	failed := 0
	for _, r := range results {
		outcome := "ok"
		if !r.OK {
			outcome = r.Error
			failed++
		}
		sheet.Rows = append(sheet.Rows, []any{r.Path, r.StatusCode, r.Duration.Round(time.Millisecond).String(), outcome})
	}
	p.Title("Endpoints")
	p.Table(sheet)

	if failed > 0 {
		return apperrors.NewUnavailableError("smoke test failed", nil).WithContext(strings.Join(failedPaths(results), ", "))
	}
	p.OK("Todos os %d endpoints responderam", len(results))
	return nil
}

func failedPaths(results []webclient.EndpointResult) []string {
	var paths []string
	for _, r := range results {
		if !r.OK {
			paths = append(paths, r.Path)
		}
	}
	return paths
}
