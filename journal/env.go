package journal

import (
	"os"
)

// envDisabledEvents is the environment variable through which disabled
// journal events can be customized.
const envDisabledEvents = "PICKAXE_JOURNAL_DISABLED_EVENTS"

// EnvDisabledEvents returns the disabled events set in the environment, or
// fallback when the variable is unset or fails to parse.
func EnvDisabledEvents(fallback DisabledEvents) DisabledEvents {
	if env, ok := os.LookupEnv(envDisabledEvents); ok {
		if ret, err := ParseDisabledEvents(env); err == nil {
			return ret
		}
	}
	return fallback
}
