// Command animesonarrproxy runs the Torznab-compatible anime-indexer proxy.
package main

func main() {
	Execute()
}
