package config

import (
	"flag"
	"os"
	"time"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the authorization service (default from Config)
//	-d string   data directory for the encrypted vault
//	-f string   path of the external consumer's auth file
//	-r int      heartbeat lower interval bound, in seconds
//	-c string   path to a JSON config file (consumed by parseJson)
//
// Unknown flags are filtered out before parsing so that -c/-config, handled
// by the JSON loader, do not interfere.
func parseFlags(cfg *Config) {
	args := filterArgs(os.Args[1:], []string{"-a", "-d", "-f", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "base URL of the authorization service")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory for the encrypted vault")
	fs.StringVar(&cfg.AuthFilePath, "f", cfg.AuthFilePath, "path of the external auth file")
	heartbeatMin := fs.Int("r", int(cfg.HeartbeatMin.Seconds()), "heartbeat lower interval bound (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.HeartbeatMin = time.Duration(*heartbeatMin) * time.Second
	if cfg.HeartbeatMax < cfg.HeartbeatMin {
		cfg.HeartbeatMax = 2 * cfg.HeartbeatMin
	}
}

// filterArgs keeps only the flags named in keep (with their values), so
// several independent parsers can share os.Args.
func filterArgs(args []string, keep []string) []string {
	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}

	var out []string
	for i := 0; i < len(args); i++ {
		if !keepSet[args[i]] {
			continue
		}
		out = append(out, args[i])
		if i+1 < len(args) {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}
