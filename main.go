package main

import (
	"os"

	"github.com/SundayYogurt/ims_service/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
