package main

import (
	"github.com/mchmarny/sohma/pkg/cli"
)

func main() {
	cli.Execute()
}
