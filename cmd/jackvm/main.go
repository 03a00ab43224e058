// Command jackvm runs previously compiled .vm files on the emulator.
//
//	jackvm [-entry Main.main] [-steps n] [-show-code] <file.vm|dir>
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gojack/pkg/config"
	"gojack/pkg/driver"
	"gojack/pkg/utils"
	"gojack/pkg/vfs"
	"gojack/pkg/vmemu"
)

func main() {
	entry := flag.String("entry", "Main.main", "function to call")
	steps := flag.Int("steps", vmemu.DefaultMaxSteps, "instruction limit")
	showCode := flag.Bool("show-code", false, "print the linked program before running")
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatalf("usage: jackvm [flags] <file.vm|dir>")
	}

	fullPath, _, isDir, err := utils.GetPathInfo(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to resolve input: %v", err)
	}
	ws := vfs.NewWorkspace()
	if isDir {
		err = ws.LoadFrom(fullPath)
	} else {
		err = ws.LoadFile(fullPath)
	}
	if err != nil {
		log.Fatalf("Failed to load: %v", err)
	}

	d := driver.New(config.Default(), nil)
	prog, err := d.Link(ws)
	if err != nil {
		log.Fatalf("Link failed: %v", err)
	}
	if *showCode {
		fmt.Print(prog)
	}

	m, err := vmemu.NewMachine(prog)
	if err != nil {
		log.Fatalf("Load failed: %v", err)
	}
	m.Output = os.Stdout
	m.MaxSteps = *steps

	ret, err := m.Call(*entry)
	fmt.Println()
	if err != nil {
		log.Fatalf("Run failed after %d steps: %v", m.Steps, err)
	}
	log.Printf("%s returned %d after %d steps", *entry, ret, m.Steps)
}
