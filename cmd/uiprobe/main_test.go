// File: cmd/uiprobe/main_test.go
package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withExit(t *testing.T) *int {
	t.Helper()
	code := -1
	osExit = func(c int) { code = c }
	t.Cleanup(func() { osExit = os.Exit })
	return &code
}

func TestMain_Version(t *testing.T) {
	code := withExit(t)
	origArgs := os.Args
	os.Args = []string{"uiprobe", "version"}
	defer func() { os.Args = origArgs }()

	main()
	assert.Equal(t, 0, *code)
}

func TestMain_UnknownCommand(t *testing.T) {
	code := withExit(t)
	origArgs := os.Args
	os.Args = []string{"uiprobe", "frobnicate"}
	defer func() { os.Args = origArgs }()

	main()
	assert.Equal(t, 1, *code)
}

func TestHandlePanic(t *testing.T) {
	code := withExit(t)
	func() {
		defer handlePanic()
		panic("boom")
	}()
	assert.Equal(t, 1, *code)
}
