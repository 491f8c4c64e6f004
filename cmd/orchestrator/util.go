package main

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func exitProcess(code int) {
	os.Exit(code)
}

func zapErr(err error) zap.Field {
	return zap.Error(err)
}

func sudoPasswordEnv() string {
	return os.Getenv("AMI_SUDO_PASSWORD")
}

func sanitizeForFilename(s string) string {
	replacer := strings.NewReplacer("/", "_", " ", "_", "\\", "_", ":", "_")
	return replacer.Replace(s)
}
