package config

import "runtime"

const (
	defaultConfigPath            = "~/.config/cohortaudit/config.toml"
	defaultNotesGlob             = "batch_notes_eval_*.json"
	defaultLogDir                = "~/.local/share/cohortaudit/logs"
	defaultAPIBind               = "127.0.0.1:8000"
	defaultNClusters             = 4
	defaultSmoothWindow          = 3
	defaultAlpha                 = 0.90
	defaultLengthMode            = "truncate"
	defaultMaxIndividualCurves   = 60
	defaultMaxCurvePoints        = 60
	defaultBaselineMethod        = "round"
	defaultMaxIterations         = 300
	defaultTolerance             = 1e-4
	defaultRequestTimeoutSeconds = 120
	defaultCORSOriginRegex       = `https?://(localhost|127\.0\.0\.1)(:\d+)?$`
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

var (
	defaultNotesDirs   = []string{"./mock-notes", "./backend/mock-notes", "./output"}
	defaultCORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			NotesDirs: append([]string(nil), defaultNotesDirs...),
			NotesGlob: defaultNotesGlob,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Analysis: Analysis{
			NClusters:           defaultNClusters,
			SmoothWindow:        defaultSmoothWindow,
			Alpha:               defaultAlpha,
			LengthMode:          defaultLengthMode,
			MaxIndividualCurves: defaultMaxIndividualCurves,
			MaxCurvePoints:      defaultMaxCurvePoints,
			BaselineMethod:      defaultBaselineMethod,
			MaxIterations:       defaultMaxIterations,
			Tolerance:           defaultTolerance,
		},
		Server: Server{
			Workers:               runtime.NumCPU(),
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			CORSOrigins:           append([]string(nil), defaultCORSOrigins...),
			CORSOriginRegex:       defaultCORSOriginRegex,
		},
		Sandbox: Sandbox{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
