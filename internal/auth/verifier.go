package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier turns a bearer token into a Principal.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Principal, error)
}

type idTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// OIDCVerifier accepts ID tokens issued by an OpenID Connect provider.
// Admin role comes from a "role" claim or from the configured admin e-mails.
type OIDCVerifier struct {
	verifier    idTokenVerifier
	adminEmails map[string]struct{}
}

type idTokenClaims struct {
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Role  string   `json:"role"`
	Roles []string `json:"roles"`
}

func NewOIDCVerifier(ctx context.Context, issuer, clientID string, adminEmails []string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider %s: %w", issuer, err)
	}
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &OIDCVerifier{
		verifier:    provider.Verifier(&oidc.Config{ClientID: clientID}),
		adminEmails: admins,
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (Principal, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var claims idTokenClaims
	if err := token.Claims(&claims); err != nil {
		return Principal{}, fmt.Errorf("%w: claims: %v", ErrInvalidToken, err)
	}
	return v.principal(token.Subject, claims), nil
}

func (v *OIDCVerifier) principal(subject string, claims idTokenClaims) Principal {
	p := Principal{Subject: subject, Email: claims.Email, Name: claims.Name, Role: RoleUser}
	if strings.EqualFold(claims.Role, string(RoleAdmin)) {
		p.Role = RoleAdmin
	}
	for _, r := range claims.Roles {
		if strings.EqualFold(r, string(RoleAdmin)) {
			p.Role = RoleAdmin
		}
	}
	if _, ok := v.adminEmails[strings.ToLower(claims.Email)]; ok {
		p.Role = RoleAdmin
	}
	return p
}

// StaticVerifier resolves tokens from a fixed table.
type StaticVerifier map[string]Principal

func (s StaticVerifier) Verify(_ context.Context, rawToken string) (Principal, error) {
	p, ok := s[rawToken]
	if !ok {
		return Principal{}, ErrInvalidToken
	}
	return p, nil
}

// ParseStaticTokens reads entries of the form "token:subject:ROLE".
// ROLE may be omitted and defaults to USER.
func ParseStaticTokens(entries []string) (StaticVerifier, error) {
	out := make(StaticVerifier, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("static token %q: want token:subject[:role]", entry)
		}
		role := RoleUser
		if len(parts) == 3 {
			switch Role(strings.ToUpper(parts[2])) {
			case RoleUser:
			case RoleAdmin:
				role = RoleAdmin
			default:
				return nil, fmt.Errorf("static token %q: unknown role %q", entry, parts[2])
			}
		}
		out[parts[0]] = Principal{Subject: parts[1], Name: parts[1], Role: role}
	}
	return out, nil
}
