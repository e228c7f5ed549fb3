// Command blecentral drives the session manager against a simulated radio.
package main

import "os"

func main() {
	if err := Run(); err != nil {
		os.Exit(1)
	}
}
