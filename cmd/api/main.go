package main

import (
	"fmt"
	"log"
	"os"

	"stocktracker/cmd"
)

func main() {
	fmt.Println(os.Getenv("commit_hash"))
	deps, err := cmd.InitializeDependencies()
	if err != nil {
		log.Fatal(err)
	}
	defer cmd.CloseDependencies(deps)

	err = deps.ApiHandler().StartApi(deps.Config.Server.Port)
	if err != nil {
		log.Fatal(err)
	}
}
