package auth

// AuthResult is the outcome of authenticating one request. The zero value is
// unauthenticated.
type AuthResult struct {
	token         string
	authenticated bool
}

// Unauthenticated returns a result carrying no credentials.
func Unauthenticated() AuthResult {
	return AuthResult{}
}

// Authenticated returns a result carrying token.
func Authenticated(token string) AuthResult {
	return AuthResult{token: token, authenticated: true}
}

// IsAuthenticated reports whether the request presented valid credentials.
func (r AuthResult) IsAuthenticated() bool {
	return r.authenticated
}

// Token returns the session token for an authenticated result.
func (r AuthResult) Token() (string, bool) {
	return r.token, r.authenticated
}

func (r AuthResult) String() string {
	if r.authenticated {
		return "Authenticated"
	}
	return "Unauthenticated"
}
