package main

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/outrigger-dev/grpc-openapi-patch/internal/args"
	"github.com/outrigger-dev/grpc-openapi-patch/internal/discover"
	"github.com/outrigger-dev/grpc-openapi-patch/internal/patch"
	"github.com/outrigger-dev/grpc-openapi-patch/internal/settings"
)

var (
	// Version is set by the linker.
	Version = "dev"
)

func main() {
	a, err := args.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if a.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	switch a.Command {
	case args.CommandDiscover:
		err = runDiscover(a)
	case args.CommandPatch:
		err = runPatch(a)
	case args.CommandVersion:
		fmt.Println("openapi-patch " + Version)
	}
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func loadMetadata(descriptorPath string) (*discover.Metadata, error) {
	raw, err := os.ReadFile(descriptorPath)
	if err != nil {
		return nil, err
	}
	log.WithField("bytes", len(raw)).Debug("read descriptor set")

	meta, err := discover.Discover(raw)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", descriptorPath, err)
	}
	return meta, nil
}

func runDiscover(a *args.Args) error {
	meta, err := loadMetadata(a.Descriptor)
	if err != nil {
		return err
	}

	if a.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}

	fmt.Printf("operations: %d\n", len(meta.OperationIDs))
	for _, op := range meta.OperationIDs {
		fmt.Printf("  %s\n", op.OperationID)
	}
	fmt.Printf("streaming: %d\n", len(meta.StreamingOps))
	for _, so := range meta.StreamingOps {
		fmt.Printf("  %s %s\n", so.Method, so.Path)
	}
	fmt.Printf("constrained schemas: %d\n", len(meta.FieldConstraints))
	fmt.Printf("enum rewrites: %d\n", len(meta.EnumRewrites))
	fmt.Printf("redirect paths: %d\n", len(meta.RedirectPaths))
	if meta.UUIDSchema != "" {
		fmt.Printf("uuid schema: %s\n", meta.UUIDSchema)
	}
	return nil
}

func runPatch(a *args.Args) error {
	meta, err := loadMetadata(a.Descriptor)
	if err != nil {
		return err
	}

	cfg, err := settings.Load(a.Config)
	if err != nil {
		return err
	}

	input, err := os.ReadFile(a.Input)
	if err != nil {
		return err
	}

	out, err := patch.Apply(input, cfg.ToPatchConfig(meta))
	if err != nil {
		return fmt.Errorf("patch %s: %w", a.Input, err)
	}

	if err := os.WriteFile(a.Output, out, 0o644); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"input":  a.Input,
		"output": a.Output,
	}).Info("document patched")
	return nil
}
