package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"cv-tailor/internal/accounts"
	sharedauth "cv-tailor/internal/shared/auth"
	"cv-tailor/internal/shared/server/respond"
	"cv-tailor/internal/shared/telemetry"
)

const (
	nonceCookie = "cvt_oauth_nonce"
	stateTTL    = 5 * time.Minute
)

var userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// AccountLinker finds or creates the account behind an external identity.
type AccountLinker interface {
	UpsertExternal(ctx context.Context, email, name string) (accounts.Account, error)
}

// GoogleService signs accounts in through Google OAuth and hands the UI a
// session token in the redirect fragment.
type GoogleService struct {
	Accounts    AccountLinker
	oauthConfig *oauth2.Config
	uiRedirect  string
}

// NewGoogleService builds a GoogleService.
func NewGoogleService(linker AccountLinker, clientID, clientSecret, redirectURL, uiRedirect string) *GoogleService {
	return &GoogleService{
		Accounts: linker,
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		uiRedirect: uiRedirect,
	}
}

// RegisterRoutes attaches Google auth routes.
func (s *GoogleService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/google/start", s.start)
	rg.GET("/auth/google/callback", s.callback)
}

func (s *GoogleService) configured() bool {
	return s.oauthConfig.ClientID != "" && s.oauthConfig.ClientSecret != "" && s.oauthConfig.RedirectURL != ""
}

func (s *GoogleService) start(c *gin.Context) {
	if !s.configured() {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "Google auth not configured", nil)
		return
	}

	nonce := uuid.NewString()
	state, err := sharedauth.SignState(nonce, stateTTL)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start sign-in", nil)
		return
	}
	s.setNonce(c, nonce, int(stateTTL/time.Second))
	c.Redirect(http.StatusFound, s.oauthConfig.AuthCodeURL(state))
}

func (s *GoogleService) callback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		respond.Error(c, http.StatusBadRequest, "access_denied", "sign-in was not completed", gin.H{"reason": reason})
		return
	}
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing state or code", nil)
		return
	}

	nonce, err := sharedauth.VerifyState(state)
	cookie, cookieErr := c.Cookie(nonceCookie)
	s.setNonce(c, "", -1)
	if err != nil || cookieErr != nil || cookie != nonce {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid or expired state", nil)
		return
	}

	ctx := c.Request.Context()
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "failed to exchange code", nil)
		return
	}

	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		telemetry.Warn("auth.google.profile_failed", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusBadGateway, "auth_failed", "failed to fetch user profile", nil)
		return
	}
	if s.Accounts == nil {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "account store not configured", nil)
		return
	}

	account, err := s.Accounts.UpsertExternal(ctx, profile.Email, profile.Name)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to link account", nil)
		return
	}
	telemetry.Info("auth.google.login", map[string]any{
		"account_id": account.ID,
		"google_sub": profile.Sub,
	})

	session, err := accounts.IssueToken(account)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}
	target, err := withTokenFragment(s.uiRedirect, session)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to redirect", nil)
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (s *GoogleService) setNonce(c *gin.Context, value string, maxAge int) {
	secure := strings.HasPrefix(s.oauthConfig.RedirectURL, "https://")
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(nonceCookie, value, maxAge, "/", "", secure, true)
}

type googleProfile struct {
	Sub   string
	Email string
	Name  string
}

var errUnverifiedEmail = errors.New("google email is not verified")

func (s *GoogleService) fetchProfile(ctx context.Context, token *oauth2.Token) (googleProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
	if err != nil {
		return googleProfile{}, err
	}
	resp, err := s.oauthConfig.Client(ctx, token).Do(req)
	if err != nil {
		return googleProfile{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return googleProfile{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return googleProfile{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	return parseProfile(body)
}

// parseProfile accepts both the v2 userinfo ("id", "verified_email") and the
// OpenID ("sub", "email_verified") shapes.
func parseProfile(body []byte) (googleProfile, error) {
	fields := gjson.GetManyBytes(body, "sub", "id", "email", "name", "verified_email", "email_verified")
	p := googleProfile{
		Sub:   fields[0].String(),
		Email: strings.TrimSpace(fields[2].String()),
		Name:  strings.TrimSpace(fields[3].String()),
	}
	if p.Sub == "" {
		p.Sub = fields[1].String()
	}
	if p.Sub == "" || p.Email == "" {
		return googleProfile{}, errors.New("userinfo missing subject or email")
	}
	for _, verified := range fields[4:] {
		if verified.Exists() && !verified.Bool() {
			return googleProfile{}, errUnverifiedEmail
		}
	}
	return p, nil
}

// withTokenFragment appends token=... to rawURL's fragment. The fragment is
// never sent to servers, keeping the token out of access logs.
func withTokenFragment(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	frag := url.Values{}
	if u.Fragment != "" {
		if existing, err := url.ParseQuery(u.Fragment); err == nil {
			frag = existing
		}
	}
	frag.Set("token", token)
	u.Fragment = frag.Encode()
	return u.String(), nil
}
