// Package logging provides the shared logrus setup and gin middleware used
// across the proxy's HTTP surface.
package logging

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup configures the global logrus logger. It is called once from each
// command's main() before any other subsystem logs.
func Setup(debug bool) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}
