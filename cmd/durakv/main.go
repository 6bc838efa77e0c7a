package main

import (
	"github.com/durakv/durakv/cmd/durakv/cmd"
)

func main() {
	cmd.Execute()
}
