// Package webclient conversa com a aplicação web do pátio como um navegador:
// busca o token CSRF, faz login mantendo o cookie de sessão e consulta a API JSON.
package webclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"patiotools/internal/apperrors"
)

const (
	DefaultBaseURL   = "http://127.0.0.1:8505"
	DefaultLoginPath = "/login"
	defaultTimeout   = 10 * time.Second
	// respostas maiores que isso não são páginas da aplicação
	maxBodySize = 4 << 20
)

// fallback para páginas em que o token não está num input/meta bem formado
var (
	csrfInputPattern = regexp.MustCompile(`name=["']csrf_token["'][^>]*?value=["']([^"']+)["']`)
	csrfValuePattern = regexp.MustCompile(`value=["']([^"']+)["'][^>]*?name=["']csrf_token["']`)
)

// Config parâmetros do cliente
type Config struct {
	BaseURL   string
	LoginPath string
	Timeout   time.Duration
	// intervalo mínimo entre requisições (0 = sem limite)
	RateLimit time.Duration
	UserAgent string
}

// Client cliente HTTP com sessão
type Client struct {
	baseURL    *url.URL
	loginPath  string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New cria o cliente. Redirecionamentos não são seguidos: o destino do
// redirect é o que diz se o login funcionou.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "patiotools/1.0"
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid base URL %q", cfg.BaseURL), err)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Every(cfg.RateLimit)
	}

	return &Client{
		baseURL:   base,
		loginPath: cfg.LoginPath,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// BaseURL endereço da aplicação
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return c.baseURL.String() + path
	}
	return c.baseURL.ResolveReference(ref).String()
}

// do aplica o limite de taxa e lê o corpo inteiro
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	// o Flask-WTF confere o Referer em HTTPS
	req.Header.Set("Referer", c.resolve(c.loginPath))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, apperrors.NewUnavailableError(fmt.Sprintf("request to %s failed", req.URL), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, data, nil
}

// FetchCSRFToken abre a página e extrai o token CSRF do formulário
func (c *Client) FetchCSRFToken(ctx context.Context, path string) (string, error) {
	resp, body, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, path)
	}
	return ExtractCSRFToken(body)
}

// ExtractCSRFToken procura o token em input[name=csrf_token], depois em
// meta[name=csrf-token] e por fim por regex no HTML cru
func ExtractCSRFToken(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err == nil {
		if token, ok := doc.Find("input[name=csrf_token]").First().Attr("value"); ok && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), nil
		}
		if token, ok := doc.Find("meta[name=csrf-token]").First().Attr("content"); ok && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), nil
		}
	}

	for _, pattern := range []*regexp.Regexp{csrfInputPattern, csrfValuePattern} {
		if m := pattern.FindSubmatch(page); m != nil {
			return string(m[1]), nil
		}
	}
	return "", apperrors.NewNotFoundError("csrf token not found in page", nil)
}

// LoginResult resultado da tentativa de login
type LoginResult struct {
	Success    bool
	StatusCode int
	Location   string
	// mensagem flash exibida pela aplicação, se houver
	Message string
}

// Login envia o formulário de login com o token CSRF. Sucesso é um redirect
// para fora da página de login; falha é o formulário de volta, com ou sem flash.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	token, err := c.FetchCSRFToken(ctx, c.loginPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch login form: %w", err)
	}

	form := url.Values{}
	form.Set("csrf_token", token)
	form.Set("username", username)
	form.Set("password", password)

	resp, body, err := c.do(ctx, http.MethodPost, c.loginPath, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return nil, err
	}

	result := &LoginResult{StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	if isRedirect(resp.StatusCode) {
		result.Success = !c.isLoginLocation(result.Location)
		if !result.Success {
			result.Message = "redirecionado de volta ao login"
		}
		return result, nil
	}

	page := inspectPage(body)
	result.Message = page.flash
	if resp.StatusCode == http.StatusOK && !page.hasLoginForm && page.flash == "" {
		// algumas versões renderizam o painel direto, sem redirect
		result.Success = true
	}
	return result, nil
}

func isRedirect(code int) bool {
	return code >= 300 && code < 400
}

func (c *Client) isLoginLocation(location string) bool {
	if location == "" {
		return true
	}
	u, err := url.Parse(location)
	if err != nil {
		return true
	}
	return strings.TrimRight(u.Path, "/") == strings.TrimRight(c.loginPath, "/")
}

type pageInfo struct {
	hasLoginForm bool
	flash        string
}

func inspectPage(body []byte) pageInfo {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageInfo{}
	}

	info := pageInfo{hasLoginForm: doc.Find("form input[name=password]").Length() > 0}
	doc.Find(".alert-danger, .alert-error, .flash-error, .flash.error, .alert-warning").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			info.flash = text
			return false
		}
		return true
	})
	return info
}

// GetJSON faz GET e decodifica a resposta em out. Um redirect para o login
// significa sessão ausente ou expirada.
func (c *Client) GetJSON(ctx context.Context, path string, out any) (int, error) {
	resp, body, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return 0, err
	}

	if isRedirect(resp.StatusCode) && c.isLoginLocation(resp.Header.Get("Location")) {
		return resp.StatusCode, apperrors.NewValidationError(fmt.Sprintf("%s requires login", path), nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, path)
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return resp.StatusCode, nil
}

// EndpointResult resultado de um endpoint no smoke test
type EndpointResult struct {
	Path       string
	StatusCode int
	Duration   time.Duration
	OK         bool
	Error      string
}

// Smoke consulta cada endpoint e registra status e tempo. Não para no primeiro erro.
func (c *Client) Smoke(ctx context.Context, endpoints []string) []EndpointResult {
	results := make([]EndpointResult, 0, len(endpoints))
	for _, path := range endpoints {
		start := time.Now()
		var payload any
		status, err := c.GetJSON(ctx, path, &payload)

		result := EndpointResult{Path: path, StatusCode: status, Duration: time.Since(start), OK: err == nil}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results
}
