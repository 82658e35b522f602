package profcoach

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/udenfc/super11/internal/platform/logging"
	"github.com/udenfc/super11/internal/usecase"
)

const (
	defaultFormMarkerClass = "pure-form"
	defaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/69.0.3497.100 Safari/537.36"
	consentApprovedField   = "IsApproved"
)

type AuthConfig struct {
	HTTPClient *http.Client
	Timeout    time.Duration

	LoginHost string
	LoginPort int
	LoginPath string

	// Credentials and client metadata for the initiate payload. The
	// password arrives base64-encoded from configuration.
	Email                   string
	PasswordEncoded         string
	Persist                 bool
	ClientID                string
	RedirectURI             string
	ResponseType            string
	Af                      string
	GoogleRecaptchaResponse string
	UserType                int

	// Host the consent form is re-submitted to; DestinationPath is the
	// authorize path announced in the initiate payload.
	ConsentHost     string
	ConsentPort     int
	DestinationPath string
	FormMarkerClass string

	GameAPIHost          string
	GameAPIPort          int
	GameAPIBootstrapPath string
	XGameGroup           string

	Logger *logging.Logger
}

// AuthFlow executes the multi-hop handshake that mints a bearer token
// for the game API. Each stage consumes the previous stage's response;
// cookies accumulate across stages and are dropped when the flow ends.
type AuthFlow struct {
	httpClient *http.Client
	cfg        AuthConfig
	logger     *logging.Logger
	scheme     string
}

func NewAuthFlow(cfg AuthConfig) (*AuthFlow, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	if cfg.Email == "" || cfg.PasswordEncoded == "" {
		return nil, crerr.New("auth flow needs credentials")
	}
	if cfg.LoginHost == "" || cfg.GameAPIHost == "" {
		return nil, crerr.New("auth flow needs login and game api hosts")
	}
	if cfg.FormMarkerClass == "" {
		cfg.FormMarkerClass = defaultFormMarkerClass
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	// The token-bearing redirect must be inspected, not followed.
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &AuthFlow{
		httpClient: httpClient,
		cfg:        cfg,
		logger:     logger,
		scheme:     "https",
	}, nil
}

// Acquire runs the whole handshake and returns the long-lived bearer
// token. Cookies collected along the way live only for the duration of
// the call.
func (f *AuthFlow) Acquire(ctx context.Context) (string, error) {
	var cookies []string

	login, err := f.initiate(ctx, &cookies)
	if err != nil {
		return "", err
	}

	consentPage, err := f.followAuthorize(ctx, &cookies, login)
	if err != nil {
		return "", err
	}

	form, err := parseConsentForm(consentPage, f.cfg.FormMarkerClass)
	if err != nil {
		return "", err
	}

	location, err := f.submitConsent(ctx, cookies, form)
	if err != nil {
		return "", err
	}

	rawToken, err := extractFragmentToken(location)
	if err != nil {
		return "", err
	}

	return f.bootstrapGameAPI(ctx, rawToken)
}

type loginRequest struct {
	Email                   string `json:"Email"`
	Password                string `json:"Password"`
	Persist                 bool   `json:"Persist"`
	Destination             string `json:"Destination"`
	Af                      string `json:"Af"`
	GoogleRecaptchaResponse string `json:"GoogleRecaptchaResponse"`
	UserType                int    `json:"UserType"`
}

type loginResponse struct {
	Goto string `json:"Goto"`
}

// initiate posts the login payload and returns the redirect target the
// provider hands back in the body.
func (f *AuthFlow) initiate(ctx context.Context, cookies *[]string) (loginResponse, error) {
	password, err := base64.StdEncoding.DecodeString(f.cfg.PasswordEncoded)
	if err != nil {
		return loginResponse{}, &usecase.AuthFlowError{
			Stage:  usecase.AuthStageInitiate,
			Detail: "configured password is not valid base64",
			Err:    err,
		}
	}

	payload := loginRequest{
		Email:    f.cfg.Email,
		Password: string(password),
		Persist:  f.cfg.Persist,
		Destination: fmt.Sprintf("https://%s:%d%s?client_id=%s&redirect_uri=%s&response_type=%s",
			f.cfg.ConsentHost, f.cfg.ConsentPort, f.cfg.DestinationPath,
			f.cfg.ClientID, f.cfg.RedirectURI, f.cfg.ResponseType),
		Af:                      f.cfg.Af,
		GoogleRecaptchaResponse: f.cfg.GoogleRecaptchaResponse,
		UserType:                f.cfg.UserType,
	}
	body, err := sonic.Marshal(payload)
	if err != nil {
		return loginResponse{}, &usecase.AuthFlowError{Stage: usecase.AuthStageInitiate, Err: err}
	}

	endpoint := fmt.Sprintf("%s://%s:%d%s", f.scheme, f.cfg.LoginHost, f.cfg.LoginPort, f.cfg.LoginPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return loginResponse{}, &usecase.AuthFlowError{Stage: usecase.AuthStageInitiate, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return loginResponse{}, &usecase.AuthFlowError{Stage: usecase.AuthStageInitiate, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return loginResponse{}, &usecase.AuthFlowError{
			Stage:      usecase.AuthStageInitiate,
			HTTPStatus: resp.StatusCode,
			Detail:     "login endpoint rejected the initiate request",
		}
	}
	collectCookies(cookies, resp)

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return loginResponse{}, &usecase.AuthFlowError{Stage: usecase.AuthStageInitiate, Err: err}
	}

	var decoded loginResponse
	if err := sonic.Unmarshal(data, &decoded); err != nil {
		return loginResponse{}, &usecase.AuthFlowError{Stage: usecase.AuthStageInitiate, Detail: "login response is not json", Err: err}
	}
	if decoded.Goto == "" {
		return loginResponse{}, &usecase.AuthFlowError{Stage: usecase.AuthStageInitiate, Detail: "login response carries no redirect target"}
	}
	return decoded, nil
}

// followAuthorize issues a GET to the login response's redirect target
// with the cookies accumulated so far, returning the consent page HTML.
func (f *AuthFlow) followAuthorize(ctx context.Context, cookies *[]string, login loginResponse) (string, error) {
	target, err := url.Parse(login.Goto)
	if err != nil {
		return "", &usecase.AuthFlowError{
			Stage:  usecase.AuthStageAuthorizeRedirect,
			Detail: "redirect target is not a valid url: " + login.Goto,
			Err:    err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", &usecase.AuthFlowError{Stage: usecase.AuthStageAuthorizeRedirect, Err: err}
	}
	req.Header.Set("Cookie", cookieHeader(*cookies))
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", &usecase.AuthFlowError{Stage: usecase.AuthStageAuthorizeRedirect, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &usecase.AuthFlowError{
			Stage:      usecase.AuthStageAuthorizeRedirect,
			HTTPStatus: resp.StatusCode,
			Detail:     "authorize redirect did not answer with 200",
		}
	}
	collectCookies(cookies, resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &usecase.AuthFlowError{Stage: usecase.AuthStageAuthorizeRedirect, Err: err}
	}
	return string(body), nil
}

type consentForm struct {
	Action string
	Fields url.Values
}

// parseConsentForm extracts the single marker-class form from the
// consent page and forces the approval field to "true".
func parseConsentForm(page, markerClass string) (consentForm, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return consentForm{}, &usecase.AuthFlowError{Stage: usecase.AuthStageConsentForm, Err: err}
	}

	forms := doc.Find("form." + markerClass)
	if forms.Length() != 1 {
		return consentForm{}, &usecase.AuthFlowError{
			Stage:  usecase.AuthStageConsentForm,
			Detail: fmt.Sprintf("form count != 1 (found %d with class %q)", forms.Length(), markerClass),
		}
	}

	form := forms.First()
	action, ok := form.Attr("action")
	if !ok || action == "" {
		return consentForm{}, &usecase.AuthFlowError{
			Stage:  usecase.AuthStageConsentForm,
			Detail: "consent form has no action attribute",
		}
	}

	fields := url.Values{}
	form.Find("input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		value, _ := s.Attr("value")
		if name == consentApprovedField {
			value = "true"
		}
		fields.Set(name, value)
	})

	return consentForm{Action: action, Fields: fields}, nil
}

// submitConsent posts the form back to the primary consent host and
// returns the token-bearing Location header.
func (f *AuthFlow) submitConsent(ctx context.Context, cookies []string, form consentForm) (string, error) {
	endpoint := fmt.Sprintf("%s://%s:%d%s", f.scheme, f.cfg.ConsentHost, f.cfg.ConsentPort, form.Action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Fields.Encode()))
	if err != nil {
		return "", &usecase.AuthFlowError{Stage: usecase.AuthStageConsentSubmit, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", cookieHeader(cookies))
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", &usecase.AuthFlowError{Stage: usecase.AuthStageConsentSubmit, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		return "", &usecase.AuthFlowError{
			Stage:      usecase.AuthStageConsentSubmit,
			HTTPStatus: resp.StatusCode,
			Detail:     "consent submission was not accepted",
		}
	}

	return resp.Header.Get("Location"), nil
}

// extractFragmentToken pulls access_token out of the Location header's
// URL fragment.
func extractFragmentToken(location string) (string, error) {
	if location == "" {
		return "", &usecase.AuthFlowError{
			Stage:  usecase.AuthStageExtractToken,
			Detail: "no Location header",
		}
	}

	idx := strings.Index(location, "#")
	if idx < 0 {
		return "", &usecase.AuthFlowError{
			Stage:  usecase.AuthStageExtractToken,
			Detail: "no access_token param",
		}
	}

	for _, param := range strings.Split(location[idx+1:], "&") {
		if !strings.HasPrefix(param, "access_token") {
			continue
		}
		parts := strings.SplitN(param, "=", 2)
		if len(parts) == 2 && parts[1] != "" {
			return parts[1], nil
		}
	}
	return "", &usecase.AuthFlowError{
		Stage:  usecase.AuthStageExtractToken,
		Detail: "no access_token param",
	}
}

type gameAPIBootstrapResponse struct {
	Data struct {
		Token struct {
			AccessToken string `json:"access_token"`
		} `json:"token"`
	} `json:"data"`
}

// bootstrapGameAPI trades the raw fragment token for the long-lived
// bearer token. The raw token goes on the Authorization header as-is,
// without a Bearer prefix.
func (f *AuthFlow) bootstrapGameAPI(ctx context.Context, rawToken string) (string, error) {
	endpoint := fmt.Sprintf("%s://%s:%d%s", f.scheme, f.cfg.GameAPIHost, f.cfg.GameAPIPort, f.cfg.GameAPIBootstrapPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", &usecase.AuthFlowError{Stage: usecase.AuthStageGameAPIBootstrap, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Game-Group", f.cfg.XGameGroup)
	req.Header.Set("Authorization", rawToken)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", &usecase.AuthFlowError{Stage: usecase.AuthStageGameAPIBootstrap, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &usecase.AuthFlowError{Stage: usecase.AuthStageGameAPIBootstrap, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &usecase.AuthFlowError{
			Stage:      usecase.AuthStageGameAPIBootstrap,
			HTTPStatus: resp.StatusCode,
			Detail:     "game api rejected the raw token",
		}
	}

	var decoded gameAPIBootstrapResponse
	if err := sonic.Unmarshal(body, &decoded); err != nil {
		return "", &usecase.AuthFlowError{Stage: usecase.AuthStageParseFinalToken, Err: err}
	}
	if decoded.Data.Token.AccessToken == "" {
		return "", &usecase.AuthFlowError{
			Stage:  usecase.AuthStageParseFinalToken,
			Detail: "response carries no data.token.access_token",
		}
	}
	return decoded.Data.Token.AccessToken, nil
}

// collectCookies appends the name=value pair of every Set-Cookie header
// on the response. Cookies only ever accumulate during a flow.
func collectCookies(cookies *[]string, resp *http.Response) {
	for _, c := range resp.Cookies() {
		*cookies = append(*cookies, c.Name+"="+c.Value)
	}
}

// cookieHeader joins cookies with ';', no trailing separator.
func cookieHeader(cookies []string) string {
	return strings.Join(cookies, ";")
}
