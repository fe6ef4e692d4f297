package main

import "meal-voucher-backend/cmd"

func main() {
	cmd.Run()
}
