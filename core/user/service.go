package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("user")
	ErrEmailExists       = errors.New("a user with this email already exists")
	ErrUsernameExists    = errors.New("a user with this username already exists")
	ErrTerritoryNotFound = errors.New("territory not found")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when another user of the tenant,
		// other than excludedID, holds username or email.
		CheckUniqueness(ctx context.Context, tenantID, username, email, excludedID string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, tenantID string, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, tenantID string, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsers(ctx context.Context, tenantID string, ids ...string) error
	}

	// TerritoryChecker tells whether a territory exists in the tenant.
	TerritoryChecker interface {
		TerritoryExists(ctx context.Context, tenantID, id string) (bool, error)
	}

	// Notifier sends the e-mails of the user workflows.
	Notifier interface {
		PasswordReset(usr User, uid, token string)
	}

	Service struct {
		repo        Repository
		territories TerritoryChecker
		notifier    Notifier
		tokens      tokenGenerator
	}
)

func NewService(repo Repository, territories TerritoryChecker, notifier Notifier, conf *core.Config) *Service {
	return &Service{
		repo:        repo,
		territories: territories,
		notifier:    notifier,
		tokens: tokenGenerator{
			secretKey: []byte(conf.SecretKey),
			timeout:   conf.PasswordResetTimeoutDelta,
		},
	}
}

func (svc *Service) checkUniqueness(tenantID, uname, email, excludedID string) error {
	if err := svc.repo.CheckUniqueness(context.Background(), tenantID, uname, email, excludedID); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
		return core.NewFieldError(field, errors.Cause(err))
	}
	return nil
}

func (svc *Service) checkTerritory(tenantID, territoryID string) error {
	if territoryID == "" || svc.territories == nil {
		return nil
	}
	ok, err := svc.territories.TerritoryExists(context.Background(), tenantID, territoryID)
	if err != nil {
		return errors.Wrap(err, "checking territory")
	}
	if !ok {
		return core.NewFieldError("territory_id", ErrTerritoryNotFound)
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:          uuid.NewString(),
		TenantID:    nu.TenantID,
		Name:        nu.Name,
		Username:    nu.Username,
		Email:       nu.Email,
		Phone:       nu.Phone,
		IsActive:    true,
		Roles:       nu.Roles,
		TerritoryID: nu.TerritoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	return usr, errors.Wrap(err, "creating user")
}

func (svc *Service) Query(ctx context.Context, tenantID string, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.QueryUsers(ctx, tenantID, *filter, core.CleanOrdering(ordering, OrderingFields...))
}

func (svc *Service) Get(ctx context.Context, tenantID string, filter GetFilter) (User, error) {
	return svc.repo.GetUser(ctx, tenantID, filter)
}

func (svc *Service) GetByID(ctx context.Context, tenantID, id string) (User, error) {
	return svc.repo.GetUser(ctx, tenantID, GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, tenantID, uname string) (User, error) {
	return svc.repo.GetUser(ctx, tenantID, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.Phone != nil {
		usr.Phone = *uu.Phone
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.TerritoryID != nil {
		usr.TerritoryID = *uu.TerritoryID
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()

	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting last login")
}

func (svc *Service) Delete(ctx context.Context, tenantID string, ids ...string) error {
	return errors.Wrap(svc.repo.DeleteUsers(ctx, tenantID, ids...), "deleting users")
}

// RequestPasswordReset e-mails a password reset link to the active user owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, tenantID, email string) error {
	usr, err := svc.repo.GetUser(ctx, tenantID, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if !usr.IsActive || usr.Email == "" {
		return ErrNotFound
	}
	if svc.notifier != nil {
		svc.notifier.PasswordReset(usr, EncodeUID(usr), svc.tokens.makeToken(usr))
	}
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	invalidLink := core.NewValidationError(errors.New("invalid or expired reset link"))

	tenantID, id, err := decodeUID(rp.UID)
	if err != nil {
		return invalidLink
	}
	usr, err := svc.repo.GetUser(ctx, tenantID, GetFilter{ID: id})
	if err != nil {
		if core.IsNotFound(err) {
			return invalidLink
		}
		return errors.Wrap(err, "getting user")
	}
	if err := svc.tokens.verifyToken(usr, rp.Token); err != nil {
		return invalidLink
	}
	if tag := passwordPolicyViolation(rp.Password, usr.Name, usr.Username, usr.Email); tag != "" {
		return core.NewFieldError("password", errors.New(passwordPolicyTexts[tag]))
	}

	if err := usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "saving password")
	}
	return nil
}

var passwordPolicyTexts = map[string]string{
	pwdMinLenTag:     pwdMinLenText,
	pwdNoSpaceTag:    pwdNoSpaceText,
	pwdNotAllNumTag:  pwdNotAllNumText,
	pwdComplexityTag: pwdComplexityText,
	pwdAttrSimTag:    pwdAttrSimText,
	pwdNoCommonTag:   pwdNoCommonText,
}
