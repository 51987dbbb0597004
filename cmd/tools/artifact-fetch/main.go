// Package main implements the artifact-fetch CLI for the learned model
// artifact.
//
// Usage:
//
//	go run ./cmd/tools/artifact-fetch                 # fetch, verify and cache the configured artifact
//	go run ./cmd/tools/artifact-fetch --clear         # drop the cached copy first
//	go run ./cmd/tools/artifact-fetch --pack --meta bundle.json --booster model.json --out model.bundle
//
// Fetch mode reads the same environment as the API (or a .env file) and
// prints the cache status as JSON. Pack mode builds a bundle from bundle
// metadata and an XGBoost JSON model, checks that it decodes, and prints the
// sha256 and size to pin in ARTIFACT_SHA256 and ARTIFACT_SIZE.
package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"snowdensity/internal/api"
	"snowdensity/internal/artifact"
	"snowdensity/internal/bootstrap"
)

// packResult is printed by pack mode.
type packResult struct {
	Path         string `json:"path"`
	ModelVersion string `json:"model_version"`
	SHA256       string `json:"sha256"`
	Size         int64  `json:"size"`
}

func main() {
	clearFlag := flag.Bool("clear", false, "Clear the cached artifact before fetching")
	packFlag := flag.Bool("pack", false, "Build a bundle instead of fetching one")
	metaFlag := flag.String("meta", "", "Bundle metadata JSON (pack mode)")
	boosterFlag := flag.String("booster", "", "XGBoost JSON model (pack mode)")
	outFlag := flag.String("out", "model.bundle", "Output path (pack mode)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: artifact-fetch [--clear] | --pack --meta FILE --booster FILE [--out FILE]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		out any
		err error
	)
	if *packFlag {
		if *metaFlag == "" || *boosterFlag == "" {
			flag.Usage()
			os.Exit(2)
		}
		out, err = packFiles(*metaFlag, *boosterFlag, *outFlag)
	} else {
		out, err = fetch(ctx, *clearFlag)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func fetch(ctx context.Context, clearFirst bool) (*api.ArtifactStatus, error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if !cfg.Artifact.Enabled {
		return nil, fmt.Errorf("the learned model is disabled (LEARNED_MODEL_ENABLED=false)")
	}
	logger := bootstrap.NewLogger(cfg.LogLevel)

	awsCfg, err := bootstrap.LoadAWS(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	cache, err := bootstrap.NewCache(cfg, awsCfg, nil, logger)
	if err != nil {
		return nil, err
	}
	svc := api.NewService(api.ServiceConfig{Cache: cache, Logger: logger})

	if clearFirst {
		if err := svc.ClearArtifact(ctx); err != nil {
			return nil, err
		}
	}
	if err := svc.Warm(ctx); err != nil {
		return nil, err
	}
	return svc.Artifact()
}

func packFiles(metaPath, boosterPath, outPath string) (*packResult, error) {
	meta, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}
	model, err := os.ReadFile(boosterPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, err
	}
	res, err := pack(meta, model, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(outPath)
		return nil, err
	}
	res.Path = outPath
	return res, nil
}

// pack encodes a bundle from metadata and booster JSON into w and verifies
// that the bytes decode.
func pack(meta, model []byte, w io.Writer) (*packResult, error) {
	var b artifact.Bundle
	if err := json.Unmarshal(meta, &b); err != nil {
		return nil, fmt.Errorf("decode bundle metadata: %w", err)
	}
	if b.FormatVersion == 0 {
		b.FormatVersion = artifact.BundleFormatVersion
	}
	if b.OutputUnit == "" {
		b.OutputUnit = artifact.OutputUnitKgM3
	}
	b.Booster = json.RawMessage(model)

	var buf bytes.Buffer
	if err := artifact.EncodeBundle(&buf, &b); err != nil {
		return nil, err
	}
	if _, err := artifact.DecodeBundle(bytes.NewReader(buf.Bytes())); err != nil {
		return nil, fmt.Errorf("packed bundle does not decode: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	n, err := w.Write(buf.Bytes())
	if err != nil {
		return nil, err
	}
	return &packResult{
		ModelVersion: b.ModelVersion,
		SHA256:       hex.EncodeToString(sum[:]),
		Size:         int64(n),
	}, nil
}
