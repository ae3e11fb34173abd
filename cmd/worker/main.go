package main

import (
	"log"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: worker <import|run|maintenance> ...")
	}

	switch os.Args[1] {
	case "import":
		RunImport(os.Args[2:])
	case "run":
		RunAnalysis(os.Args[2:])
	case "maintenance":
		RunMaintenance(os.Args[2:])
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}
