package guard

import "strings"

// Route classification is static data, consulted in one place. Screens
// never decide for themselves whether they are public or admin-only.

// DefaultLanding is where authenticated users end up when a destination
// is denied or unspecified.
const DefaultLanding = "/photos"

// LoginPath is where unauthenticated users are sent.
const LoginPath = "/login"

// publicPrefixes are reachable without any session: the login flow
// itself, account bootstrap, and public share viewing.
var publicPrefixes = []string{
	"/login",
	"/register",
	"/forgot-password",
	"/reset",
	"/accept",
	"/public",
	"/2fa/verify",
}

// adminPrefixes additionally require the ADMIN role. User administration
// is the only role-gated surface; everything else is open to any
// authenticated session.
var adminPrefixes = []string{
	"/users",
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// IsPublic reports whether path is reachable without authentication.
func IsPublic(path string) bool { return matchesPrefix(path, publicPrefixes) }

// IsAdminOnly reports whether path additionally requires the ADMIN role.
func IsAdminOnly(path string) bool { return matchesPrefix(path, adminPrefixes) }
