package model

type EmailSettings struct {
	Enabled  bool   `json:"enabled"`
	Email    string `json:"email"`
	AuthCode string `json:"authCode,omitempty"`
	// Host/Port override the provider lookup by address domain.
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}
