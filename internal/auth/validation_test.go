package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name string
		in   Credentials
		want string
	}{
		{name: "valid", in: Credentials{Username: "alice", Password: "secret"}, want: ""},
		{name: "empty username", in: Credentials{Username: "", Password: "secret"}, want: MsgUsernameRequired},
		{name: "both empty reports username", in: Credentials{}, want: MsgUsernameRequired},
		{name: "empty username with long password", in: Credentials{Password: strings.Repeat("p", 100)}, want: MsgUsernameRequired},
		{name: "empty password", in: Credentials{Username: "alice"}, want: MsgPasswordRequired},
		{name: "long password", in: Credentials{Username: "alice", Password: strings.Repeat("p", 100)}, want: ""},
		{name: "long multibyte password", in: Credentials{Username: "alice", Password: strings.Repeat("é", 200)}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateRegistration(tt.in))
		})
	}
}
