//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets (all, race, integration).
type Test mg.Namespace

// All runs the unit tests.
func (Test) All() error {
	return sh.RunV(binGo, "test", "./...")
}

// Race runs the unit tests with the race detector.
func (Test) Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Integration runs the tests behind the integration build tag. They read
// NDB_DYNAMODB_TABLE and the AWS settings from the environment or .env and
// skip when no table is configured.
func (Test) Integration() error {
	if _, err := os.Stat(".env"); os.IsNotExist(err) && os.Getenv("NDB_DYNAMODB_TABLE") == "" {
		fmt.Println("NDB_DYNAMODB_TABLE is not set and no .env file found; integration tests will skip.")
	}
	return sh.RunV(binGo, "test", "-tags", "integration", "-count=1", "./internal/dynamo/...")
}
