package observability

// Config captures opt-in observability toggles that wire into the HTTP
// surface. Profiling stays off unless explicitly enabled because the
// endpoints expose runtime internals.
type Config struct {
	EnablePprofTrace bool
}
