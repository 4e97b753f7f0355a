package main

import (
	"fmt"
	"log"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// defaultWorkers reports how many OS threads this process may run on
// concurrently, preferring the kernel's own affinity mask over Go's
// runtime guess.
func defaultWorkers() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err == nil {
		if n := set.Count(); n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

func funcmain() error {
	type cmd struct {
		fn func(args []string) error
	}
	verbs := map[string]cmd{
		"pack":        {pack},
		"unpack":      {unpack},
		"export-cpio": {exportCPIO},
	}

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "rrmod <command> [-flags] [args]\n")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "\tpack         - pack a directory (for bpe, a file) into a tex/pach/epac/bpe file\n")
		fmt.Fprintf(os.Stderr, "\tunpack       - unpack a tex/pach/epac/bpe file into a directory (for bpe, a file)\n")
		fmt.Fprintf(os.Stderr, "\texport-cpio  - re-package an unpacked directory as a cpio archive\n")
		os.Exit(2)
	}
	verb, args := args[0], args[1:]

	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: rrmod <command> [options]\n")
		os.Exit(2)
	}
	if err := v.fn(args); err != nil {
		return fmt.Errorf("%s: %v", verb, err)
	}
	return nil
}

func main() {
	log.SetFlags(0)
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
