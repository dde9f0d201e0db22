package main

import "github.com/L4VA-Technologies-Inc/l4va-api-sub000/cmd"

func main() {
	cmd.Execute()
}
