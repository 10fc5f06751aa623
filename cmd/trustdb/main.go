// Command trustdb is a small demonstration client: it bootstraps a
// trust.Database from a local root.json, fetches the rest of the chain
// from a repository, and prints the cryptographic description of a
// requested target path.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	gokitlog "github.com/go-kit/kit/log"

	"github.com/kolide/trustdb/repository"
	"github.com/kolide/trustdb/trust"
)

func main() {
	var (
		baseDir    = flag.String("base-directory", "./repo", "local directory holding root.json and cached roles")
		repoURL    = flag.String("repository-url", "", "base URL of the remote TUF repository; empty to use the local cache only")
		skipVerify = flag.Bool("insecure-skip-verify", false, "skip TLS certificate verification for the remote repository")
		target     = flag.String("target", "", "target path to resolve after refreshing")
	)
	flag.Parse()

	rootPath := filepath.Join(*baseDir, "root.json")
	rawRoot, err := ioutil.ReadFile(rootPath)
	if err != nil {
		log.Fatalf("reading local root at %s: %s", rootPath, err)
	}

	db, err := trust.New(rawRoot)
	if err != nil {
		log.Fatalf("bootstrapping trust database: %s", err)
	}

	storage := &repository.DiskStorage{Root: *baseDir}

	var provider repository.Provider
	if *repoURL != "" {
		http, err := repository.NewHTTPProvider(*repoURL)
		if err != nil {
			log.Fatalf("configuring repository provider: %s", err)
		}
		http.SkipTLSVerify = *skipVerify
		provider = http
	} else {
		provider = &repository.DiskProvider{Root: *baseDir}
	}

	logger := gokitlog.NewLogfmtLogger(os.Stderr)
	fetcher := repository.NewFetcher(provider, storage, logger)

	updated, err := fetcher.Refresh(db)
	if err != nil {
		log.Fatalf("refreshing trust database: %s", err)
	}
	fmt.Printf("updated roles: %v\n", updated)

	if *target == "" {
		return
	}
	desc, err := db.TargetDescription(*target)
	if err != nil {
		log.Fatalf("resolving %q: %s", *target, err)
	}
	fmt.Printf("%s: length=%d hashes=%v\n", *target, desc.Length, desc.Hashes)
}
