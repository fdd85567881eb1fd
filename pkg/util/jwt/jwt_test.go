package jwt

import "testing"

func TestAccessTokenRoundTrip(t *testing.T) {
	Init("test-secret", 15, 168)

	tok, err := GenerateAccessToken("U_T1", "teacher", "Mme Dupont")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseToken(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "U_T1" || claims.Role != "teacher" || claims.Nickname != "Mme Dupont" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.Subject != SubjectAccessToken {
		t.Fatalf("subject = %s", claims.Subject)
	}
}

func TestRefreshTokenCarriesTokenID(t *testing.T) {
	Init("test-secret", 15, 168)

	tok, id, err := GenerateRefreshToken("U_P1", "parent", "")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseToken(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.TokenID != id || claims.Subject != SubjectRefreshToken {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseRejectsForeignSecret(t *testing.T) {
	Init("secret-a", 15, 168)
	tok, _ := GenerateAccessToken("U1", "parent", "")
	Init("secret-b", 15, 168)
	if _, err := ParseToken(tok); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}
}
