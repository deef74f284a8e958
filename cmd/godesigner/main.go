/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"godesigner/internal/bundle"
	"godesigner/internal/config"
	"godesigner/internal/crash"
	"godesigner/internal/domain"
	"godesigner/internal/editor"
	"godesigner/internal/export"
	applog "godesigner/internal/log"
	"godesigner/internal/storage"
	"godesigner/internal/telemetry"
	"godesigner/internal/ui"
	"godesigner/internal/version"
)

// loadConfig is swapped in tests to keep the real config file and keyring out.
var loadConfig = config.Load

func usage(w io.Writer) {
	fmt.Fprintln(w, "GoDesigner")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  godesigner version|-v|--version                      Show version")
	fmt.Fprintln(w, "  godesigner new <name>                                Create a design with one page")
	fmt.Fprintln(w, "  godesigner list                                      List designs")
	fmt.Fprintln(w, "  godesigner show <designID>                           Print pages and layers")
	fmt.Fprintln(w, "  godesigner add-page <designID> <name> <w> <h>        Append a page")
	fmt.Fprintln(w, "  godesigner add-shape <designID> <kind> [text]        Add rectangle|circle|triangle|text to the active page")
	fmt.Fprintln(w, "  godesigner export <designID> <format> [outDir]       Export the active page (png|jpeg|json|svg|pdf)")
	fmt.Fprintln(w, "  godesigner pack <designID> <file.zip>                Archive a design with its pages")
	fmt.Fprintln(w, "  godesigner unpack <file.zip>                         Install an archived design")
	fmt.Fprintln(w, "  godesigner ui [<designID>]                           Launch desktop UI (build with -tags fyne for full UI)")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// usageError marks bad invocations; they exit with code 2.
type usageError string

func (e usageError) Error() string { return string(e) }

func run(args []string, out io.Writer) int {
	if len(args) == 0 {
		usage(out)
		return 0
	}
	switch args[0] {
	case "version", "--version", "-v":
		fmt.Fprintln(out, "GoDesigner")
		fmt.Fprintln(out, version.String())
		return 0
	case "help", "-h", "--help":
		usage(out)
		return 0
	}

	cfg, secret, err := loadConfig()
	if err != nil {
		fmt.Fprintln(out, "Error:", err)
		return 1
	}
	applog.Init(applog.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, AddSource: cfg.Logging.Source, File: cfg.Logging.File})
	l := applog.WithComponent("cli")
	l.Debug("start", slog.String("cmd", args[0]), slog.Int("args", len(args)))
	telemetry.NewDefault(telemetry.FromConfig(cfg.General))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		telemetry.Default().Flush(ctx)
	}()

	ctx := context.Background()
	g, err := storage.Open(ctx, cfg.Storage, secret)
	if err != nil {
		l.Error("open storage failed", applog.Err(err))
		fmt.Fprintln(out, "Error:", err)
		return 1
	}
	defer func() {
		if err := g.Close(); err != nil {
			l.Warn("close storage", applog.Err(err))
		}
	}()

	c := &cli{cfg: cfg, out: out, gateway: g, queue: editor.NewQueue()}
	c.store = editor.NewStore(storage.NewDesignRepository(g), storage.NewPageRepository(g), cfg, editor.LogNotifier{Log: l}, c.queue)
	defer crash.Recover(c.store, filepath.Join(os.TempDir(), "godesigner"))

	if err = c.dispatch(ctx, args); err == nil {
		c.queue.Drain()
		err = c.store.Flush(ctx)
	}
	if err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(out, err)
			usage(out)
			return 2
		}
		l.Error(args[0]+" failed", applog.Err(err))
		fmt.Fprintln(out, "Error:", err)
		return 1
	}
	return 0
}

type cli struct {
	cfg     config.AppConfig
	out     io.Writer
	gateway storage.Gateway
	store   *editor.Store
	queue   *editor.Queue
}

func need(args []string, n int, msg string) error {
	if len(args) < n+1 {
		return usageError(msg)
	}
	return nil
}

func (c *cli) dispatch(ctx context.Context, args []string) error {
	switch args[0] {
	case "new":
		if err := need(args, 1, "new requires <name>"); err != nil {
			return err
		}
		d, err := c.store.CreateDesign(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Created design %s (%s)\n", d.Name, d.ID)
		return nil
	case "list":
		return c.list(ctx)
	case "show":
		if err := need(args, 1, "show requires <designID>"); err != nil {
			return err
		}
		return c.show(ctx, args[1])
	case "add-page":
		if err := need(args, 4, "add-page requires <designID> <name> <w> <h>"); err != nil {
			return err
		}
		w, werr := strconv.Atoi(args[3])
		h, herr := strconv.Atoi(args[4])
		if werr != nil || herr != nil || w <= 0 || h <= 0 {
			return usageError("page size must be two positive integers")
		}
		if _, err := c.store.OpenDesign(ctx, args[1]); err != nil {
			return err
		}
		p, err := c.store.AddPage(domain.PageConfig{Name: args[2], Width: w, Height: h})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Added page %s (%s) %dx%d\n", p.Config.Name, p.ID, w, h)
		return nil
	case "add-shape":
		if err := need(args, 2, "add-shape requires <designID> <kind>"); err != nil {
			return err
		}
		return c.addShape(ctx, args[1], domain.LayerKind(args[2]), args[3:])
	case "export":
		if err := need(args, 2, "export requires <designID> <format>"); err != nil {
			return err
		}
		dir := c.cfg.Export.Dir
		if len(args) > 3 {
			dir = args[3]
		}
		return c.export(ctx, args[1], args[2], dir)
	case "pack":
		if err := need(args, 2, "pack requires <designID> <file.zip>"); err != nil {
			return err
		}
		if err := bundle.Export(ctx, c.gateway, args[1], args[2]); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Packed", args[2])
		return nil
	case "unpack":
		if err := need(args, 1, "unpack requires <file.zip>"); err != nil {
			return err
		}
		d, n, err := bundle.Install(ctx, c.gateway, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Installed design %s (%s) with %d page snapshots\n", d.Name, d.ID, n)
		return nil
	case "ui":
		var id string
		if len(args) > 1 {
			id = args[1]
		}
		return ui.Run(c.cfg, c.gateway, id)
	}
	return usageError(fmt.Sprintf("unknown command %q", args[0]))
}

func (c *cli) list(ctx context.Context) error {
	list, err := c.store.ListDesigns(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(c.out, "No designs yet.")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPAGES\tUPDATED")
	for _, d := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.ID, d.Name, len(d.Pages), d.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func (c *cli) show(ctx context.Context, id string) error {
	d, err := c.store.OpenDesign(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Design: %s (%s)\n", d.Name, d.ID)
	for _, p := range d.Pages {
		marker := " "
		if p.ID == d.ActivePageID {
			marker = "*"
		}
		fmt.Fprintf(c.out, "%s Page %s (%s) %dx%d %s\n", marker, p.Config.Name, p.ID, p.Config.Width, p.Config.Height, p.Config.Background)
		for i := len(p.Layers) - 1; i >= 0; i-- {
			l := p.Layers[i]
			fmt.Fprintf(c.out, "    %-10s %-20s visible=%t locked=%t opacity=%.2f\n", l.Kind, l.Name, l.Visible, l.Locked, l.Opacity)
		}
	}
	return nil
}

// mountActive opens a design and loads its active page into a headless canvas.
func (c *cli) mountActive(ctx context.Context, id string) (string, error) {
	d, err := c.store.OpenDesign(ctx, id)
	if err != nil {
		return "", err
	}
	if _, err := c.store.MountNewCanvas(d.ActivePageID); err != nil {
		return "", err
	}
	c.queue.Drain()
	if c.store.BindingState(d.ActivePageID) != editor.Loaded {
		return "", fmt.Errorf("%w: page %s", editor.ErrNotReady, d.ActivePageID)
	}
	return d.ActivePageID, nil
}

func (c *cli) addShape(ctx context.Context, id string, kind domain.LayerKind, rest []string) error {
	if !kind.Valid() || kind == domain.KindImage {
		return usageError(fmt.Sprintf("unknown shape kind %q", kind))
	}
	pageID, err := c.mountActive(ctx, id)
	if err != nil {
		return err
	}
	var l domain.Layer
	if kind == domain.KindText {
		text := ""
		if len(rest) > 0 {
			text = rest[0]
		}
		l, err = c.store.AddText(pageID, text)
	} else {
		l, err = c.store.AddShape(pageID, kind)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Added %s layer %s (%s)\n", l.Kind, l.Name, l.ID)
	return nil
}

func (c *cli) export(ctx context.Context, id, format, dir string) error {
	f, err := export.ParseFormat(format)
	if err != nil {
		return usageError(err.Error())
	}
	pageID, err := c.mountActive(ctx, id)
	if err != nil {
		return err
	}
	p, err := c.store.Page(pageID)
	if err != nil {
		return err
	}
	opt := export.DefaultOptions(c.cfg.Export)
	opt.Name = p.Config.Name
	payload, err := export.Render(c.store.Canvas(pageID), f, opt)
	if err != nil {
		return err
	}
	path, err := export.WriteFile(dir, payload)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Exported", path)
	return nil
}
