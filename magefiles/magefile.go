//go:build mage

// Package main provides build targets for the caja project using Mage.
//
// Usage:
//
//	mage build          Compile the caja binary to bin/
//	mage test:all       Run every test
//	mage test:unit      Run tests in short mode
//	mage test:race      Run tests with the race detector
//	mage test:cover     Write a coverage profile to bin/coverage.out
//	mage test:redis     Run the key/value suites against REDIS_ADDR
//	mage lint           Run go vet and golangci-lint
//	mage clean          Remove build artifacts
//	mage install        Install caja to GOPATH/bin
//	mage stats          Print Go line counts per package
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// packageLines holds the line counts of one directory.
type packageLines struct {
	prod, test int
}

// Stats prints Go lines of code per package directory.
func Stats() error {
	counts := map[string]*packageLines{}

	err := filepath.WalkDir(".", func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			switch {
			case path == ".":
				return nil
			case strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_"),
				path == "vendor", path == binaryDir, path == "magefiles":
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		n, err := countLines(path)
		if err != nil {
			return nil
		}
		dir := filepath.Dir(path)
		if counts[dir] == nil {
			counts[dir] = &packageLines{}
		}
		if strings.HasSuffix(path, "_test.go") {
			counts[dir].test += n
		} else {
			counts[dir].prod += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	dirs := make([]string, 0, len(counts))
	for d := range counts {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	var prod, test int
	fmt.Printf("%-24s %8s %8s\n", "PACKAGE", "PROD", "TEST")
	for _, d := range dirs {
		c := counts[d]
		fmt.Printf("%-24s %8d %8d\n", d, c.prod, c.test)
		prod += c.prod
		test += c.test
	}
	fmt.Printf("%-24s %8d %8d\n", "total", prod, test)
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
