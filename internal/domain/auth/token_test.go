package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	claims := Claims{UserID: "u-1", RoleID: "r-1", RoleName: RoleEmployee}

	token, err := GenerateToken("secret", claims, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseToken("secret", token)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.UserID != "u-1" || parsed.RoleID != "r-1" || parsed.RoleName != RoleEmployee {
		t.Errorf("claims = %+v", parsed)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", Claims{UserID: "u-1"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken("other", token); err == nil {
		t.Error("token accepted with the wrong secret")
	}
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken("secret", Claims{UserID: "u-1"}, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken("secret", token); err == nil {
		t.Error("expired token accepted")
	}
}

func TestParseTokenGarbage(t *testing.T) {
	if _, err := ParseToken("secret", "not-a-token"); err == nil {
		t.Error("garbage accepted")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "hunter2hunter2" {
		t.Error("password stored in the clear")
	}
	if err := CheckPassword(hash, "hunter2hunter2"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
}
