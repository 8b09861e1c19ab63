// Command mirror keeps a local SQLite copy of a catalog server current and
// answers position queries from it.
package main

func main() {
	Execute()
}
