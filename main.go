package main

import (
	"os"

	"S3ArchiveBuilder/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
