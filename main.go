// Command rangecrawler enumerates a catalog by numeric id.
package main

import "github.com/JakeFAU/catalog-range-crawler/cmd"

func main() {
	cmd.Execute()
}
