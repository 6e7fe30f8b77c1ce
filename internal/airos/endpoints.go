package airos

// Generation identifies the firmware family a device speaks. It selects the
// login dialect and the status field mapping; it is determined once by the
// probe and threaded explicitly through session and normalization code.
type Generation int

const (
	// GenUnknown means the dialect has not been probed yet
	GenUnknown Generation = iota
	// GenV6 covers airOS 6 firmware (XM/XW boards): form-encoded login via
	// login.cgi, cookie-based session, sparser status payloads
	GenV6
	// GenV8 covers airOS 8 firmware (WA/XC boards): login via /api/auth,
	// AIROS_* cookie plus X-CSRF-ID token, richer status payloads
	GenV8
)

// String returns the firmware family tag
func (g Generation) String() string {
	switch g {
	case GenV6:
		return "v6"
	case GenV8:
		return "v8"
	default:
		return "unknown"
	}
}

// ParseGeneration converts a stored tag back into a Generation
func ParseGeneration(s string) Generation {
	switch s {
	case "v6":
		return GenV6
	case "v8":
		return GenV8
	default:
		return GenUnknown
	}
}

// Dialect is the outcome of a firmware probe: the generation tag plus the
// login endpoint that succeeded, so session renewal never re-probes.
type Dialect struct {
	Generation Generation
	// LoginPath is the endpoint that produced a recognizable response
	LoginPath string
	// FormLogin is true when credentials go out form-encoded (v6 dialects);
	// false means the v8 request shape
	FormLogin bool
}

// HTTP endpoints exposed by airOS firmware. Login and status are shared
// between generations; the /api/* surface is v8 only.
const (
	// pathAuth is the v8 login endpoint
	pathAuth = "/api/auth"
	// pathLoginCGI is the v6 form login endpoint
	pathLoginCGI = "/login.cgi"
	// pathIndexCGI is the v6 legacy entry page; fetching it seeds the
	// session cookie some XM builds require before login.cgi accepts a POST
	pathIndexCGI = "/index.cgi"
	// pathStatusCGI serves the status snapshot on both generations
	pathStatusCGI = "/status.cgi"
	// pathLogout tears down the device-side session
	pathLogout = "/logout.cgi"

	pathStakick          = "/stakick.cgi"
	pathProvMode         = "/api/provmode"
	pathWarnings         = "/api/warnings"
	pathUpdateCheck      = "/api/fw/update-check"
	pathDownload         = "/api/fw/download"
	pathDownloadProgress = "/api/fw/download-progress"
	pathInstall          = "/fwflash.cgi"

	// pathStream is the v8 live status WebSocket endpoint
	pathStream = "/ws"
)
