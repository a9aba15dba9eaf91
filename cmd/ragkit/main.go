// Command ragkit indexes local documents into a BM25 and a vector index,
// searches them in bm25, vector or hybrid mode, and measures retrieval
// quality with an LLM judge. It also serves search over MCP stdio and HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/ragkit/cmd/ragkit/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
