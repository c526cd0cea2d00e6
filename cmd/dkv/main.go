package main

import "github.com/beansdb-go/dkv/cmd"

func main() {
	cmd.Execute()
}
