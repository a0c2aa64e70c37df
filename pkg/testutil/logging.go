package testutil

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Packages importing testutil log everything at trace level, but only to
// stdout when tests run verbosely.
func init() {
	logrus.SetLevel(logrus.TraceLevel)

	for _, arg := range os.Args {
		if arg == "-test.v" || strings.HasPrefix(arg, "-test.v=") && arg != "-test.v=false" {
			return
		}
	}
	logrus.StandardLogger().Out = io.Discard
}
