package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider/cognitoidentityprovideriface"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-gym-booking/shared/models"
	"github.com/pavitra93/go-gym-booking/shared/utils"
)

const claimsCacheTTL = time.Hour

// TokenVerifier turns a bearer token into the caller's identity
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.Identity, error)
}

// TokenClaims are the claims of a shared-secret token
type TokenClaims struct {
	Email    string `json:"email"`
	TenantID string `json:"tenantId"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// HMACVerifier verifies HS256 tokens signed with a shared secret
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Verify checks signature and expiry
func (v *HMACVerifier) Verify(_ context.Context, tokenString string) (*models.Identity, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	return buildIdentity(claims.Subject, claims.Email, claims.TenantID, claims.Role)
}

// NewHMACToken signs a token for identity, used by the token command and tests
func NewHMACToken(secret string, identity models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		Email:    identity.Email,
		TenantID: identity.TenantID.String(),
		Role:     string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.MemberID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// CognitoVerifier verifies Cognito RS256 tokens against the user pool JWKS.
// Access tokens carry no custom attributes, so those are fetched with AdminGetUser.
type CognitoVerifier struct {
	jwks           *utils.JWKSValidator
	cognitoClient  cognitoidentityprovideriface.CognitoIdentityProviderAPI
	userPoolID     string
	circuitBreaker *utils.CircuitBreaker
}

// NewCognitoVerifier creates a verifier for the given region and user pool
func NewCognitoVerifier(region, userPoolID string) (*CognitoVerifier, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, err
	}

	return &CognitoVerifier{
		jwks:           utils.NewCognitoJWKSValidator(region, userPoolID),
		cognitoClient:  cognitoidentityprovider.New(sess),
		userPoolID:     userPoolID,
		circuitBreaker: utils.NewCircuitBreaker("cognito", 5, 30*time.Second),
	}, nil
}

// Verify validates the token and resolves its identity, caching the result in Redis for an hour
func (v *CognitoVerifier) Verify(ctx context.Context, tokenString string) (*models.Identity, error) {
	if cached, err := utils.GetTokenSession(ctx, tokenString); err == nil {
		identity := cached.Identity
		return &identity, nil
	}

	claims, err := v.jwks.ValidateToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}

	tokenUse := getClaimString(claims, "token_use")
	if tokenUse != "access" && tokenUse != "id" {
		return nil, fmt.Errorf("invalid token use: expected 'access' or 'id', got '%s'", tokenUse)
	}

	sub := getClaimString(claims, "sub")
	email := getClaimString(claims, "email")
	tenantID := getClaimString(claims, "custom:tenant_id")
	role := getClaimString(claims, "custom:role")

	if tenantID == "" || role == "" {
		var out *cognitoidentityprovider.AdminGetUserOutput
		err := v.circuitBreaker.Call(func() error {
			var callErr error
			out, callErr = v.cognitoClient.AdminGetUserWithContext(ctx, &cognitoidentityprovider.AdminGetUserInput{
				UserPoolId: aws.String(v.userPoolID),
				Username:   aws.String(sub),
			})
			return callErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get user from Cognito: %w", err)
		}

		for _, attr := range out.UserAttributes {
			value := aws.StringValue(attr.Value)
			switch aws.StringValue(attr.Name) {
			case "custom:tenant_id":
				if tenantID == "" {
					tenantID = value
				}
			case "custom:role":
				if role == "" {
					role = value
				}
			case "email":
				if email == "" {
					email = value
				}
			}
		}
	}

	identity, err := buildIdentity(sub, email, tenantID, role)
	if err != nil {
		return nil, err
	}

	ttl := claimsCacheTTL
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		if remaining := time.Until(exp.Time); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl > 0 {
		if _, err := utils.CreateTokenSession(ctx, tokenString, *identity, ttl); err != nil {
			logrus.WithError(err).Warn("Failed to cache token identity")
		}
	}
	return identity, nil
}

func buildIdentity(sub, email, tenantID, role string) (*models.Identity, error) {
	if sub == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	tid, err := uuid.Parse(tenantID)
	if err != nil {
		return nil, fmt.Errorf("token has no valid tenant: %w", err)
	}

	r := models.RoleMember
	if role != "" {
		r = models.UserRole(strings.ToUpper(role))
	}
	if !r.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	return &models.Identity{
		MemberID: sub,
		Email:    email,
		Role:     r,
		TenantID: tid,
	}, nil
}

// getClaimString safely extracts a string claim from JWT claims
func getClaimString(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
