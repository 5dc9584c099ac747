/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"github.com/ssargent/drlog/cmd/drlog/cmd"
	"github.com/ssargent/drlog/pkg/di"
)

func main() {
	// Initialize dependency injection container
	container := di.NewContainer()

	// Inject dependencies into cmd package
	cmd.SetContainer(container)

	cmd.Execute()
}
