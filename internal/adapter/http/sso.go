package adapthttp

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// SSO holds the OIDC provider used as an alternative first factor.
type SSO struct {
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
	// AdminEmail is the only identity accepted from the provider.
	AdminEmail string
}

// SSOConfig configures NewSSO.
type SSOConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AdminEmail   string
}

// NewSSO discovers the provider at cfg.Issuer.
func NewSSO(ctx context.Context, cfg SSOConfig) (*SSO, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery %s: %w", cfg.Issuer, err)
	}
	return &SSO{
		Provider: provider,
		OAuth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email"},
		},
		AdminEmail: cfg.AdminEmail,
	}, nil
}
