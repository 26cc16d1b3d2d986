package main

import "github.com/eleven-am/transcribe-relay/internal/bootstrap"

func main() {
	bootstrap.Run()
}
