package main

import (
	"os"

	"github.com/graphfront/sparql-proxy/proxyservice"
)

func main() {
	if err := proxyservice.Run(); err != nil {
		os.Exit(1)
	}
}
