package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (E100-E119)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "The configuration file passed with --config does not exist.",
	},
	"E101": {
		Category:   CategoryConfig,
		Message:    "Config file could not be parsed",
		Detail:     "The configuration file is not valid YAML or JSON.",
		Suggestion: "Check indentation and quoting near the reported line.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Unsupported config format",
		Detail:   "Configuration files must end in .yaml, .yml or .json.",
	},
	"E103": {
		Category:   CategoryConfig,
		Message:    "Invalid duration",
		Detail:     "Durations are written as Go duration strings.",
		Suggestion: `Use a value such as "500ms", "10s" or "1m30s".`,
	},
	"E104": {
		Category:   CategoryConfig,
		Message:    "Invalid log setting",
		Detail:     "log.level must be debug, info, warn or error; log.format must be text or json.",
		Suggestion: "Remove the setting to use the defaults (info, text).",
	},
	"E105": {
		Category: CategoryConfig,
		Message:  "Invalid server setting",
		Detail:   "A server limit or timeout in the configuration is out of range.",
	},
	"E106": {
		Category:   CategoryConfig,
		Message:    "Invalid listen address",
		Detail:     "Addresses are written host:port; the host may be empty.",
		Suggestion: `Use ":8080" or "127.0.0.1:8080".`,
	},

	// ============================================
	// Server Errors (E120-E139)
	// ============================================

	"E120": {
		Category:   CategoryServer,
		Message:    "Could not listen",
		Detail:     "The server could not bind its listen address.",
		Suggestion: "Another process may be using the port. Pick another with --addr.",
	},
	"E121": {
		Category: CategoryServer,
		Message:  "Server stopped unexpectedly",
		Detail:   "The accept loop returned an error.",
	},
	"E122": {
		Category: CategoryServer,
		Message:  "Shutdown did not complete",
		Detail:   "Connections were still open when the shutdown timeout expired and were closed forcibly.",
	},

	// ============================================
	// Routing Errors (E140-E149)
	// ============================================

	"E140": {
		Category: CategoryRouting,
		Message:  "Route registration failed",
		Detail:   "A route pattern was rejected by the route table.",
		Suggestion: "Patterns start with \"/\"; a {name} segment may not be empty, and a position " +
			"can only carry one parameter name.",
	},

	// ============================================
	// Network / CLI Errors (E160-E179)
	// ============================================

	"E160": {
		Category: CategoryNetwork,
		Message:  "Connection failed",
		Detail:   "The probe could not connect to the target address.",
	},
	"E161": {
		Category: CategoryNetwork,
		Message:  "Invalid response",
		Detail:   "The target closed the connection or answered with something that is not an HTTP/1.1 response.",
	},
	"E162": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
		Detail:   "The command was called with missing or malformed arguments.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
