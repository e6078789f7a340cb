package main

// flags.go parses the lrucache-inspect command line. Kept in its own file,
// mirroring the teacher's separation of flag parsing from main's control
// flow, so main.go stays focused on what to do with a parsed set of options
// rather than how they were read.
//
// © 2025 arena-cache authors. MIT License.

import (
    "flag"
    "fmt"
    "os"
    "time"
)

type options struct {
    target           string
    json             bool
    watch            bool
    interval         time.Duration
    heapProfile      string
    goroutineProfile string
    version          bool
}

func parseFlags() *options {
    opts := &options{}

    flag.StringVar(&opts.target, "target", "http://localhost:6060", "base URL of the target process")
    flag.BoolVar(&opts.json, "json", false, "print the snapshot as JSON instead of text")
    flag.BoolVar(&opts.watch, "watch", false, "poll the snapshot endpoint repeatedly")
    flag.DurationVar(&opts.interval, "interval", time.Second, "polling interval when -watch is set")
    flag.StringVar(&opts.heapProfile, "heap-profile", "", "download a heap profile to this path instead of printing a snapshot")
    flag.StringVar(&opts.goroutineProfile, "goroutine-profile", "", "download a goroutine profile to this path instead of printing a snapshot")
    flag.BoolVar(&opts.version, "version", false, "print the CLI version and exit")

    flag.Usage = func() {
        fmt.Fprintln(os.Stderr, "lrucache-inspect: diagnostics CLI for a running lrucache process")
        flag.PrintDefaults()
    }
    flag.Parse()
    return opts
}
