package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"

	"dropvest/internal/merkletree"

	"github.com/schollz/progressbar/v3"
)

// Offline tree builder. Reads address,amount,index rows and writes the root,
// campaign parameters and every claimant's proof as JSON.
func main() {
	var input string
	var output string
	var quiet bool

	flag.StringVar(&input, "in", "", "CSV file with address,amount,index rows (default stdin)")
	flag.StringVar(&output, "out", "", "output JSON file (default stdout)")
	flag.BoolVar(&quiet, "quiet", false, "disable progress output")
	flag.Parse()

	var reader io.Reader = os.Stdin
	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			log.Fatalf("open input: %s", err.Error())
		}
		defer f.Close()
		reader = f
	}

	entries, err := merkletree.ReadCSV(reader)
	if err != nil {
		log.Fatalf("read claims: %s", err.Error())
	}
	log.Println("claims:", len(entries))

	var progress func(int)
	if !quiet {
		pbar := progressbar.NewOptions(merkletree.NodeCount(len(entries)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionFullWidth(),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
		)
		progress = func(n int) { _ = pbar.Add(n) }
		defer func() { _ = pbar.Finish() }()
	}

	tree, err := merkletree.Build(entries, progress)
	if err != nil {
		log.Fatalf("build tree: %s", err.Error())
	}
	result, err := tree.Output()
	if err != nil {
		log.Fatalf("render proofs: %s", err.Error())
	}

	var writer io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			log.Fatalf("create output: %s", err.Error())
		}
		defer f.Close()
		writer = f
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		log.Fatalf("write output: %s", err.Error())
	}
	log.Println("root:", result.Root)
}
