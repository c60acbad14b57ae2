// Package main is the entry point for the nflmetrics CLI, which loads NFL
// play-by-play data and computes per-player statistical and efficiency metrics.
package main

import "github.com/pable/go-nfl-metrics/cmd"

func main() {
	cmd.Execute()
}
