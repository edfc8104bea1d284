package main

import (
	"fmt"

	"github.com/webitel/webhooks-service/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
