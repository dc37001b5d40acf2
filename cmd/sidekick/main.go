package main

import (
	"github.com/sidekick-sh/sidekick/internal/cli"
	"github.com/sidekick-sh/sidekick/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
