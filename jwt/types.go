package jwt

// Header is the JOSE header of a device token.
type Header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid,omitempty"`
}

// Claims of a device token. Subject is the device id, Events the events the
// device may sync for.
type Claims struct {
	Issuer         string   `json:"iss,omitempty"`
	Subject        string   `json:"sub,omitempty"`
	Audience       string   `json:"aud,omitempty"`
	ExpirationTime string   `json:"exp,omitempty"`
	IssuedAt       string   `json:"iat,omitempty"`
	JWTID          string   `json:"jti,omitempty"`
	Events         []string `json:"evt,omitempty"`
}
