package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/ud-systems/UD-Leads-sub001/core"
)

// Roles
const (
	// Admin
	RoleAdmin      = "admin:"
	RoleAdminOwner = "admin:owner"

	// Sales manager
	RoleManager = "manager:"

	// Sales rep
	RoleRep = "rep:"
)

var (
	AdminRoles   = []string{RoleAdmin, RoleAdminOwner}
	ManagerRoles = []string{RoleManager}
	RepRoles     = []string{RoleRep}
	AllRoles     = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner: 30,
		RoleAdmin:      21,

		// Managers: 20 - 11
		RoleManager: 15,

		// Reps: 10 - 1
		RoleRep: 5,
	}

	Roles = []Role{
		{Name: "Sales Rep", Value: RoleRep},
		{Name: "Manager", Value: RoleManager},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 4)
	all = append(all, AdminRoles...)
	all = append(all, ManagerRoles...)
	all = append(all, RepRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	IsActive     bool      `json:"is_active"`
	Roles        []string  `json:"roles"`
	TerritoryID  string    `json:"territory_id"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsOwner() bool {
	return core.StringIn(RoleAdminOwner, u.Roles)
}

func (u *User) IsManager() bool {
	return u.RoleStartsWith(RoleManager)
}

func (u *User) IsRep() bool {
	return u.RoleStartsWith(RoleRep)
}

// DisplayName is the name used in e-mails.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	TenantID        string   `json:"-"`
	Name            string   `json:"name" validate:"required,max=255"`
	Username        string   `json:"username" validate:"omitempty,min=3,max=150,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email,max=255"`
	Phone           string   `json:"phone" validate:"omitempty,phone"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	TerritoryID     string   `json:"territory_id" validate:"omitempty,uuid"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)
	nu.TerritoryID = core.CleanString(nu.TerritoryID, true /* lower */)
	nu.Roles = core.CleanStrings(nu.Roles, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	if err := svc.checkUniqueness(nu.TenantID, nu.Username, nu.Email, ""); err != nil {
		return err
	}
	return svc.checkTerritory(nu.TenantID, nu.TerritoryID)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name" validate:"max=255"`
	Username        string   `json:"username" validate:"omitempty,min=3,max=150,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email,max=255"`
	Phone           *string  `json:"phone" validate:"omitempty,phone|len=0"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	TerritoryID     *string  `json:"territory_id" validate:"omitempty,uuid|len=0"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

// AdminOnly reports whether the update touches fields only admins may change.
func (uu *UpdateUser) AdminOnly() bool {
	return uu.IsActive != nil || uu.Roles != nil || uu.Username != "" || uu.Email != "" || uu.TerritoryID != nil
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc *Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if uname := core.CleanString(uu.Username, true /* lower */); uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	if uu.Phone != nil {
		phone := core.CleanString(*uu.Phone)
		uu.Phone = &phone
	}
	if uu.TerritoryID != nil {
		tid := core.CleanString(*uu.TerritoryID, true /* lower */)
		uu.TerritoryID = &tid
	}
	if uu.Roles != nil {
		uu.Roles = core.CleanStrings(uu.Roles, true /* lower */)
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	if err := svc.checkUniqueness(origUsr.TenantID, uu.Username, uu.Email, origUsr.ID); err != nil {
		return err
	}
	if uu.TerritoryID != nil {
		return svc.checkTerritory(origUsr.TenantID, *uu.TerritoryID)
	}
	return nil
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// GetFilter selects a single User; the first set field wins.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	TerritoryID string    `query:"territory_id"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.TerritoryID == "" &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Roles = core.CleanStrings(qf.Roles, true /* lower */)
	qf.TerritoryID = core.CleanString(qf.TerritoryID, true /* lower */)
}

// OrderingFields are the fields users can be ordered by.
var OrderingFields = []string{"name", "username", "email", "created_at", "last_login"}
