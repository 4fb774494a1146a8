// Command pathfind recursively indexes one or more directory trees into a
// kestrel store and answers component-pattern searches against the index,
// the Go descendant of the original's pathfinder and caseless-pathfinder
// sample applications, merged behind a single --ignore-case flag.
package main

func main() {
	execute()
}
