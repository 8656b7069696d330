/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/tsbernar/proxy-auth/cmd"

func main() {
	cmd.Execute()
}
