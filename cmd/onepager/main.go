// Command onepager serves the one-pager report API and administers the
// one_pager_reports table.
package main

import (
	"os"

	"github.com/bynd/onepager/cmd/onepager/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
