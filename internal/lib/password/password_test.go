package password

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestHash(t *testing.T) {
	password := "MySecurePassword123"

	hash, err := Hash(password)
	if err != nil {
		t.Fatalf("Hash() failed: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$") {
		t.Errorf("Hash should start with $argon2id$v=19$m=65536,t=1,p=4$, got: %s", hash)
	}

	hash2, err := Hash(password)
	if err != nil {
		t.Fatalf("Hash() failed on second call: %v", err)
	}
	if hash == hash2 {
		t.Error("Two hashes of same password should differ (different salts)")
	}
}

func TestVerify(t *testing.T) {
	password := "MySecurePassword123"

	hash, err := Hash(password)
	if err != nil {
		t.Fatalf("Hash() failed: %v", err)
	}

	salt := base64.RawStdEncoding.EncodeToString([]byte("0123456789abcdef"))

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
		wantErr  bool
	}{
		{name: "Correct password", password: password, hash: hash, want: true},
		{name: "Wrong password", password: "WrongPassword456", hash: hash, want: false},
		{name: "Empty password", password: "", hash: hash, want: false},
		{name: "Invalid hash format", password: password, hash: "invalid", wantErr: true},
		{name: "Wrong algorithm", password: password, hash: "$bcrypt$v=1$m=65536,t=1,p=4$salt$hash", wantErr: true},
		{name: "Bad parameters", password: password, hash: "$argon2id$v=19$m=x,t=1,p=4$" + salt + "$abc", wantErr: true},
		{name: "Zero parallelism", password: password, hash: "$argon2id$v=19$m=65536,t=1,p=0$" + salt + "$abc", wantErr: true},
		{name: "Bad salt encoding", password: password, hash: "$argon2id$v=19$m=65536,t=1,p=4$!!!$abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Verify(tt.password, tt.hash)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidHash) {
				t.Errorf("Verify() error = %v, want ErrInvalidHash", err)
			}
			if got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}
