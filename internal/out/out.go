// Package out provides startup banner output for node binaries.
package out

import (
	"fmt"

	"github.com/shareward/shareward/internal/log"
)

// PrintBanner writes a short startup banner naming the node and the
// version it is running, followed by its resolved log level.
func PrintBanner(appName, appVersion string) {
	fmt.Printf(
		"%s v%s — proactive secret-sharing node\nLOG LEVEL: %s\n\n",
		appName, appVersion, log.Level(),
	)
}
