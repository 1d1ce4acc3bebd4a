package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/gallery/internal/gallery"
)

type mergeOptions struct {
	pkgPath   string
	blob      string
	feedPath  string
	outPath   string
	iconOut   string
	baseURL   string
	feedID    string
	feedTitle string
}

func newMergeCmd() *cobra.Command {
	o := &mergeOptions{}

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge one package into a local feed file",
		Example: `  gallery merge --package MyExt.vsix --feed atom.xml --icon-out MyExt.png \
    --base-url https://cdn.example.com/gallery`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd.OutOrStdout(), o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.pkgPath, "package", "", "VSIX package to merge")
	f.StringVar(&o.blob, "blob", "", "blob name (default: package file name without extension)")
	f.StringVar(&o.feedPath, "feed", "atom.xml", "existing feed, may be missing")
	f.StringVar(&o.outPath, "out", "", "output feed (default: --feed)")
	f.StringVar(&o.iconOut, "icon-out", "", "where to write the package icon")
	f.StringVar(&o.baseURL, "base-url", "", "public base URL of the blob storage")
	f.StringVar(&o.feedID, "feed-id", gallery.DefaultFeedID, "feed id")
	f.StringVar(&o.feedTitle, "feed-title", gallery.DefaultFeedTitle, "feed title")
	_ = cmd.MarkFlagRequired("package")
	_ = cmd.MarkFlagRequired("base-url")
	return cmd
}

func runMerge(out io.Writer, o *mergeOptions) error {
	g, err := gallery.New(o.baseURL, gallery.WithFeedID(o.feedID), gallery.WithFeedTitle(o.feedTitle))
	if err != nil {
		return err
	}

	pkg, err := os.Open(o.pkgPath)
	if err != nil {
		return err
	}
	defer pkg.Close()

	blob := o.blob
	if blob == "" {
		base := filepath.Base(o.pkgPath)
		blob = strings.TrimSuffix(base, filepath.Ext(base))
	}

	var current io.Reader
	existing, err := os.ReadFile(o.feedPath)
	switch {
	case err == nil:
		current = bytes.NewReader(existing)
	case errors.Is(err, os.ErrNotExist):
	default:
		return err
	}

	var feed, icon bytes.Buffer
	var iconOut io.Writer
	if o.iconOut != "" {
		iconOut = &icon
	}

	res, err := g.UpdateFeed(pkg, blob, current, &feed, iconOut)
	if err != nil {
		return err
	}

	outPath := o.outPath
	if outPath == "" {
		outPath = o.feedPath
	}
	if err := os.WriteFile(outPath, feed.Bytes(), 0o644); err != nil {
		return err
	}
	if res.Icon {
		if err := os.WriteFile(o.iconOut, icon.Bytes(), 0o644); err != nil {
			return err
		}
	}

	if res.FeedRecovered {
		fmt.Fprintf(out, "⚠️  existing feed was unreadable, started a new one: %v\n", res.RecoveryErr)
	}
	if res.Skipped {
		fmt.Fprintf(out, "package %s has no manifest, feed left unchanged (%d entries)\n", o.pkgPath, res.Entries)
		return nil
	}
	fmt.Fprintf(out, "✅ merged %s %s into %s (%d entries)\n", res.Manifest.ID, res.Manifest.Version, outPath, res.Entries)
	if res.Icon {
		fmt.Fprintf(out, "icon written to %s\n", o.iconOut)
	}
	return nil
}
