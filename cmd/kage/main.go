package main

import (
	"github.com/louissarvin/kage-sub000/cmd/kage/cmd"
)

func main() {
	cmd.Execute()
}
