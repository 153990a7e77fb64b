// Command hlltool is a small command-line front end for the hll package: it
// reads newline-delimited raw values, builds a sketch with the requested
// parameters, and prints the estimated cardinality. It's the CLI analogue
// of the database extension's scalar and aggregate functions, for use
// outside a database.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/digoal/go-hll"
	"github.com/digoal/go-hll/driver"
)

func main() {
	log2m := flag.Int("log2m", 11, "log-base-2 of the register count")
	regwidth := flag.Int("regwidth", 5, "bits per register")
	expthresh := flag.Int("expthresh", hll.AutoExplicitThreshold, "explicit-set threshold, or -1 for automatic")
	sparse := flag.Bool("sparse", true, "allow the SPARSE wire encoding")
	seed := flag.Int64("seed", hll.DefaultHashSeed, "murmur3 hash seed")
	dumpPath := flag.String("dump", "", "write the serialized sketch to this file")
	debug := flag.Bool("debug", false, "print the sketch's type and parameters instead of its cardinality")

	flag.Parse()

	settings := hll.Settings{
		Log2m:             *log2m,
		Regwidth:          *regwidth,
		ExplicitThreshold: *expthresh,
		SparseEnabled:     *sparse,
	}

	session := driver.NewSession()
	if err := session.Create("main", settings); err != nil {
		fmt.Fprintln(os.Stderr, "hlltool:", err)
		os.Exit(1)
	}

	hasher := hll.NewHasher(*seed)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := session.Add("main", hasher.Sum64(line)); err != nil {
			fmt.Fprintln(os.Stderr, "hlltool:", err)
			os.Exit(1)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "hlltool:", err)
		os.Exit(1)
	}

	if *debug {
		dump, err := session.Debug("main")
		if err != nil {
			fmt.Fprintln(os.Stderr, "hlltool:", err)
			os.Exit(1)
		}
		fmt.Println(dump)
	} else {
		estimate, ok, err := session.Cardinality("main")
		if err != nil {
			fmt.Fprintln(os.Stderr, "hlltool:", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Println("undefined")
		} else {
			fmt.Printf("%.0f\n", estimate)
		}
	}

	if *dumpPath != "" {
		bytes, err := session.Dump("main")
		if err != nil {
			fmt.Fprintln(os.Stderr, "hlltool:", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*dumpPath, bytes, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "hlltool:", err)
			os.Exit(1)
		}
	}
}
