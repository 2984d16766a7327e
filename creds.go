package upstream

import "os"

// Credential names an API key and the ordered list of environment variables
// that may hold it. Several exchanges shipped under two naming schemes
// (BINANCE_SECRET before the rename to BINANCE_API_SECRET), so every
// credential carries its legacy aliases and resolution tries them in order.
//
// Resolve credentials once at startup into the owning collector's config
// rather than re-reading the environment at every call site.
type Credential struct {
	// Name identifies the credential in logs (never its value).
	Name string
	// EnvVars are candidate environment variable names, primary first.
	EnvVars []string
}

// NewCredential builds a Credential with a primary variable name and
// optional legacy aliases.
func NewCredential(name string, envVars ...string) Credential {
	return Credential{Name: name, EnvVars: envVars}
}

// Resolve returns the first non-empty candidate value and true, or ""
// and false when every candidate is absent. A missing credential is not an
// error: callers treat the upstream as unauthenticated and degrade.
func (c Credential) Resolve() (string, bool) {
	for _, name := range c.EnvVars {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// LookupAPIKey reads an API key from the environment, trying the primary
// variable name and then each alias in order.
func LookupAPIKey(primary string, aliases ...string) (string, bool) {
	return Credential{EnvVars: append([]string{primary}, aliases...)}.Resolve()
}
