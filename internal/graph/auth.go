package graph

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/HerbigniauxBenoit/spsync/internal/config"
	"github.com/HerbigniauxBenoit/spsync/internal/utils"
)

// TokenProvider supplies bearer tokens for Graph requests.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// clientSecretProvider acquires app-only tokens via the OAuth2 client
// credentials grant.
type clientSecretProvider struct {
	source oauth2.TokenSource
}

// newClientSecretProvider builds a provider for the given Entra application.
func newClientSecretProvider(tenantID, clientID, clientSecret string) *clientSecretProvider {
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", utils.LoginEndpoint, tenantID),
		Scopes:       []string{utils.GraphScope},
	}
	// TokenSource caches and refreshes under the hood.
	return &clientSecretProvider{source: cc.TokenSource(context.Background())}
}

func (p *clientSecretProvider) Token(ctx context.Context) (string, error) {
	tok, err := p.source.Token()
	if err != nil {
		return "", utils.NewAppError(utils.ErrCodeAuthFailed, "failed to acquire Graph token", err)
	}
	return tok.AccessToken, nil
}

// defaultCredentialProvider acquires tokens through the Azure default
// credential chain (managed identity, workload identity, Azure CLI, env).
type defaultCredentialProvider struct {
	cred   *azidentity.DefaultAzureCredential
	scopes []string
}

func newDefaultCredentialProvider() (*defaultCredentialProvider, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeAuthFailed, "failed to build Azure credential chain", err)
	}
	return &defaultCredentialProvider{
		cred:   cred,
		scopes: []string{utils.GraphScope},
	}, nil
}

func (p *defaultCredentialProvider) Token(ctx context.Context) (string, error) {
	tok, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: p.scopes})
	if err != nil {
		return "", utils.NewAppError(utils.ErrCodeAuthFailed, "failed to acquire Graph token", err)
	}
	return tok.Token, nil
}

// SecretLookup resolves the client secret when it is not in the environment,
// typically from the OS keyring.
type SecretLookup func() (string, error)

// NewTokenProvider selects the auth mode from config. Tenant and client IDs
// together select the client-credentials grant; otherwise the default Azure
// credential chain is used.
func NewTokenProvider(cfg *config.Config, lookup SecretLookup) (TokenProvider, error) {
	if !cfg.UseClientSecretAuth() {
		return newDefaultCredentialProvider()
	}

	secret := cfg.ClientSecret
	if secret == "" && lookup != nil {
		s, err := lookup()
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeAuthFailed,
				"AZURE_CLIENT_SECRET not set and no stored secret found", err)
		}
		secret = s
	}
	if secret == "" {
		return nil, utils.NewAppError(utils.ErrCodeAuthFailed,
			"client credential auth requires AZURE_CLIENT_SECRET or a stored secret", nil)
	}

	return newClientSecretProvider(cfg.TenantID, cfg.ClientID, secret), nil
}

// staticTokenProvider returns a fixed token. Used in tests.
type staticTokenProvider string

func (p staticTokenProvider) Token(context.Context) (string, error) {
	return string(p), nil
}

// NewStaticTokenProvider wraps a pre-acquired token.
func NewStaticTokenProvider(token string) TokenProvider {
	return staticTokenProvider(token)
}
