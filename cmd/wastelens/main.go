package main

import "github.com/MeKo-Tech/wastelens/cmd/wastelens/cmd"

func main() {
	cmd.Execute()
}
