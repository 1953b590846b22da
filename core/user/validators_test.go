package user

import (
	"testing"

	"github.com/kozihub/kozi/core"
)

func Test_validatePassword(t *testing.T) {
	tests := []struct {
		name    string
		nu      NewUser
		wantErr string // expected field error text; empty for valid
	}{
		{
			name: "ok",
			nu:   NewUser{Name: "Awa Traore", Username: "awa", Email: "awa@test.local", Password: "s0methingEls3"},
		},
		{
			name:    "too short",
			nu:      NewUser{Name: "Awa", Username: "awa", Password: "s3cret"},
			wantErr: pwdMinLenText,
		},
		{
			name:    "whitespace",
			nu:      NewUser{Name: "Awa", Username: "awa", Password: "pass word 123"},
			wantErr: pwdNoSpaceText,
		},
		{
			name:    "all numeric",
			nu:      NewUser{Name: "Awa", Username: "awa", Password: "4815162342"},
			wantErr: pwdNotAllNumText,
		},
		{
			name:    "similar to email",
			nu:      NewUser{Name: "Awa", Username: "awa", Email: "awa@test.local", Password: "awa@test.locaX"},
			wantErr: pwdAttrSimText,
		},
		{
			name:    "common password",
			nu:      NewUser{Name: "Awa", Username: "awa", Password: "password1"},
			wantErr: pwdNoCommonText,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.nu.PasswordConfirm = tt.nu.Password
			err := core.Validate.Struct(&tt.nu)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate.Struct() error = %v; want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate.Struct() error = nil; want field error")
			}
			vErr := core.TranslateValidationError(err)
			cause, ok := vErr.(*core.ValidationError)
			if !ok {
				t.Fatalf("unexpected error type %T: %v", vErr, vErr)
			}
			var found bool
			for _, fld := range cause.Fields {
				if fld.Error == tt.wantErr {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("field errors %v do not contain %q", cause.Fields, tt.wantErr)
			}
		})
	}
}
