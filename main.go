// The main package for the healthdir executable.
package main

import "github.com/helvetic-data/healthdir-crawler/cmd"

func main() {
	cmd.Execute()
}
