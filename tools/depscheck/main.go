package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePath = "swingy/server"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// rule forbids packages under Scope from importing anything under a listed prefix.
type rule struct {
	Scope     string
	Forbidden []string
}

var rules = []rule{
	// The simulation stays transport agnostic.
	{Scope: modulePath + "/internal/sim", Forbidden: []string{
		modulePath + "/internal/net",
		modulePath + "/internal/spectate",
		modulePath + "/internal/app",
		"github.com/gorilla/websocket",
		"github.com/charmbracelet/",
	}},
	// Wire formats must not reach back into the connection layer.
	{Scope: modulePath + "/internal/net/proto", Forbidden: []string{
		modulePath + "/internal/net/ws",
		modulePath + "/internal/net/intake",
	}},
	{Scope: modulePath + "/logging", Forbidden: []string{
		modulePath + "/internal/",
	}},
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	violations, err := check(bytes.NewReader(output), rules)
	if err != nil {
		fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
		os.Exit(1)
	}

	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func check(r io.Reader, rules []rule) ([]string, error) {
	decoder := json.NewDecoder(r)

	var violations []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}

		for _, rl := range rules {
			if pkg.ImportPath != rl.Scope && !strings.HasPrefix(pkg.ImportPath, rl.Scope+"/") {
				continue
			}
			for _, imp := range pkg.Imports {
				for _, prefix := range rl.Forbidden {
					if strings.HasPrefix(imp, prefix) {
						violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
					}
				}
			}
		}
	}
	sort.Strings(violations)
	return violations, nil
}
