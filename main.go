package main

import (
	"github.com/ValentinKolb/dACK/cmd"
)

func main() {
	cmd.Execute()
}
