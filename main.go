package main

import "github.com/Norgate-AV/bundlecache/cmd"

func main() {
	cmd.Execute()
}
