package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/August26/proxyscout/internal/logging"
)

func TestParseFlags_ConfigFileAndOverride(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "proxyscout.yaml")
	yml := "type: socks4\ninput: list.txt\nconcurrency: 7\nretries: 2\n"
	if err := os.WriteFile(cfgPath, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{"-config", cfgPath, "-concurrency", "3"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.ProxyType != "socks4" || cfg.InputFile != "list.txt" || cfg.Retries != 2 {
		t.Fatalf("file values not applied: %#v", cfg)
	}
	if cfg.Concurrency != 3 {
		t.Fatalf("explicit flag should win, got concurrency %d", cfg.Concurrency)
	}
}

func TestParseFlags_RequiresInput(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := parseFlags(fs, nil); err == nil {
		t.Fatalf("expected error without -input or -discover")
	}
}

func TestRun_WritesOutputs(t *testing.T) {
	// nothing listens here, so every proxy is refused quickly
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	dir := t.TempDir()
	input := filepath.Join(dir, "in.txt")
	if err := os.WriteFile(input, []byte(addr+"\nnot-a-proxy\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{
		"-type", "socks5",
		"-input", input,
		"-output", filepath.Join(dir, "sorted.txt"),
		"-report", filepath.Join(dir, "report.csv"),
		"-format", "csv",
		"-timeout", "1",
		"-geo-url", "http://127.0.0.1:1/",
	})
	if err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	if err := run(context.Background(), cfg, logging.Discard(), &stdout, io.Discard); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), "not-a-proxy") {
		t.Fatalf("table missing invalid line:\n%s", stdout.String())
	}

	sorted, err := os.ReadFile(filepath.Join(dir, "sorted.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sorted) != 0 {
		t.Fatalf("no proxy works, sorted export should be empty: %q", sorted)
	}
	report, err := os.ReadFile(filepath.Join(dir, "report.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(report), "\n"); got != 3 {
		t.Fatalf("want header plus two rows, got %d lines:\n%s", got, report)
	}
}

func TestRun_MissingInput(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{"-input", filepath.Join(t.TempDir(), "nope.txt")})
	if err != nil {
		t.Fatal(err)
	}
	err = run(context.Background(), cfg, logging.Discard(), io.Discard, io.Discard)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want not-exist error, got %v", err)
	}
}
