// Package main provides the entry point for the orbweaver CLI.
//
// orbweaver crawls a website from a declarative sitemap, renders each page in
// a headless browser and extracts text, links and HTML by CSS or XPath rules.
//
// Usage:
//
//	orbweaver crawl sitemap.json
//	orbweaver serve --port 8080
//
// See --help for all available options.
package main

func main() {
	Execute()
}
