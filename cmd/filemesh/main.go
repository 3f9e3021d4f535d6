// Command filemesh serves and runs the FileMesh supervisor/worker runtime.
package main

func main() {
	Execute()
}
