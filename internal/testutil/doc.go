// Package testutil holds fixtures shared by package tests: a small social
// graph, deterministic ID sequences and a fake clock pinned to a known epoch.
package testutil
