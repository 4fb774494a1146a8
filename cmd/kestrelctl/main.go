// Command kestrelctl opens a kestrel store file and operates on its named
// trees from the command line, or drops into an interactive shell.
package main

func main() {
	execute()
}
