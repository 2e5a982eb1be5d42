package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/tenant"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
	tokenAudience   = "UD Leads"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	TenantID     string   `json:"tid"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsAdmin      bool     `json:"is_admin,omitempty"`
	IsManager    bool     `json:"is_manager,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

// Authenticator issues and refreshes the tokens of the API users.
type Authenticator struct {
	conf    *core.Config
	tenants *tenant.Service
	users   *user.Service
	jwt     middleware.JWTConfig
}

func NewAuthenticator(conf *core.Config, tenants *tenant.Service, users *user.Service) *Authenticator {
	return &Authenticator{
		conf:    conf,
		tenants: tenants,
		users:   users,
		jwt: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

func (auth *Authenticator) UserClaims(usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    auth.conf.AppName,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(auth.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		TenantID:     usr.TenantID,
		Username:     usr.Username,
		Email:        usr.Email,
		IsAdmin:      usr.IsAdmin(),
		IsManager:    usr.IsManager(),
		Roles:        usr.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (auth *Authenticator) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(auth.jwt.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(auth.jwt.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Token returns a fresh token for usr.
func (auth *Authenticator) Token(usr user.User) (string, error) {
	return auth.GenerateToken(auth.UserClaims(usr))
}

// activeTenant returns the tenant by slug, or errAuthenticationFailed when it cannot be logged into.
func (auth *Authenticator) activeTenant(ctx context.Context, slug string) (tenant.Tenant, error) {
	tn, err := auth.tenants.GetBySlug(ctx, slug)
	if err != nil {
		if core.IsNotFound(err) {
			return tenant.Tenant{}, errAuthenticationFailed
		}
		return tenant.Tenant{}, errors.Wrap(err, "finding tenant by slug")
	}
	if !tn.IsActive {
		return tenant.Tenant{}, errAuthenticationFailed
	}
	return tn, nil
}

func (auth *Authenticator) authenticate(ctx context.Context, tenantSlug, uname, pwd string) (*Claims, error) {
	tn, err := auth.activeTenant(ctx, tenantSlug)
	if err != nil {
		return nil, err
	}
	usr, err := auth.users.GetByUsernameOrEmail(ctx, tn.ID, uname)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !usr.IsActive {
		return nil, errAccountDeactivated
	}
	usr, err = auth.users.SetLastLogin(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return auth.UserClaims(usr), nil
}

// middleware checks the bearer token, then loads the user it was issued to.
func (auth *Authenticator) middleware() echo.MiddlewareFunc {
	checkToken := middleware.JWTWithConfig(auth.jwt)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return checkToken(func(ctx echo.Context) error {
			if _, err := auth.contextUser(ctx); err != nil {
				return err
			}
			return next(ctx)
		})
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// contextUser loads the active user of the token, along with their tenant, into ctx.
func (auth *Authenticator) contextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}

	reqCtx := ctx.Request().Context()
	tn, err := auth.tenants.Get(reqCtx, claims.TenantID)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding tenant by ID")
	}
	if !tn.IsActive {
		return user.User{}, errTenantDeactivated
	}
	usr, err := auth.users.GetByID(reqCtx, claims.TenantID, claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// getContextUser returns the user loaded by the auth middleware.
func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

func (auth *Authenticator) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(auth.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := auth.GenerateToken(auth.UserClaims(usr, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}
