package main

// The API binary wires its dependencies with dig (see main_dig.go).
func main() {
	startWithDig()
}
