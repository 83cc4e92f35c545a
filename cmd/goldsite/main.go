// Command goldsite runs the gold-rate site backend: the HTTP API, the daily
// publishing scheduler, and one-shot maintenance jobs.
package main

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	Execute()
}
