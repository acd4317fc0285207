package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the structure of the JSON Web Token (JWT) claims for the relay.
// Relay access tokens identify a front-end deployment that is allowed to open
// WebSocket connections; they carry no per-account identity, since the WhatsApp
// account is bound later through the auth event.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These are crucial for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// Frontend names the front-end deployment that the token was issued to.
	Frontend string `json:"frontend"`
}
