package main

import "github.com/KaramelBytes/trendmerge/cmd"

func main() {
	cmd.Execute()
}
