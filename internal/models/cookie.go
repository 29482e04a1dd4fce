package models

// Cookie is a browser session cookie supplied by the caller for
// authentication. Domain and Path default to the JazzHR app when empty.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Expires  float64 `json:"expires,omitempty"` // unix seconds, 0 = session cookie
}

// Normalize fills in the default domain and path for a cookie destined for
// the JazzHR app.
func (c Cookie) Normalize() Cookie {
	if c.Domain == "" {
		c.Domain = ".jazz.co"
	}
	if c.Path == "" {
		c.Path = "/"
	}
	return c
}
