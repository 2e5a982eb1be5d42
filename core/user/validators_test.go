package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ud-systems/UD-Leads-sub001/core"
)

func Test_passwordPolicyViolation(t *testing.T) {
	require.NoError(t, loadCommonPasswords())
	require.NotEmpty(t, commonPasswords)

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{name: "too short", pwd: "Ab1!", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 1234!", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", wantTag: pwdNotAllNumTag},
		{name: "no special", pwd: "Abcdefg12", wantTag: pwdComplexityTag},
		{name: "no upper", pwd: "abcdefg1!", wantTag: pwdComplexityTag},
		{name: "similar to username", pwd: "Janedoe1!", wantTag: pwdAttrSimTag},
		{name: "common", pwd: "P@ssw0rd", wantTag: pwdNoCommonTag},
		{name: "valid", pwd: "Gr33n-Tomato$"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTag, passwordPolicyViolation(tt.pwd, "Jane Doe", "janedoe", "jane@test.cd"))
		})
	}
}

func TestNewUser_structValidation(t *testing.T) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	fieldErrors := func(err error) map[string]string {
		verr, ok := core.TranslateErrors(err, translator)
		require.True(t, ok, "unexpected error: %v", err)
		fields := make(map[string]string, len(verr.Fields))
		for _, f := range verr.Fields {
			fields[f.Field] = f.Error
		}
		return fields
	}

	nu := NewUser{Name: "Rep", Password: "Gr33n-Tomato$", PasswordConfirm: "Gr33n-Tomato$", Roles: []string{RoleRep}}
	assert.Equal(t, map[string]string{
		"username": usernameOrEmailText,
		"email":    usernameOrEmailText,
	}, fieldErrors(validate.Struct(nu)))

	nu.Username = "rep01"
	nu.Roles = []string{"boss:"}
	assert.Equal(t, map[string]string{"roles": allRolesText}, fieldErrors(validate.Struct(nu)))

	nu.Roles = []string{RoleRep, RoleManager}
	assert.NoError(t, validate.Struct(nu))

	uu := UpdateUser{Name: "Rep", Username: "rep01", Password: "short", PasswordConfirm: "short"}
	assert.Equal(t, map[string]string{"password": pwdMinLenText}, fieldErrors(validate.Struct(uu)))
}
