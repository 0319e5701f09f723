package main

import "github.com/Lingeshemvigo/lms-backend/cmd"

func main() {
	cmd.Execute()
}
