package main

import "github.com/saheelsapovadia/dopamine-detox-backend/cmd"

func main() {
	cmd.Execute()
}
