package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/arm-runtime/engine"
	"github.com/wippyai/arm-runtime/errors"
	"github.com/wippyai/arm-runtime/ktf"
	"github.com/wippyai/arm-runtime/platform"
	"github.com/wippyai/arm-runtime/runtime"
)

type globalFlags struct {
	logLevel     string
	otlpEndpoint string
	root         string
	dbPath       string
	width        uint32
	height       uint32
	config       engine.Config
}

type imageFlags struct {
	base  string
	entry string
	thumb bool
	args  []string
}

func main() {
	g := &globalFlags{config: engine.DefaultConfig()}

	rootCmd := &cobra.Command{
		Use:   "arm-run",
		Short: "Run feature-phone ARM executables",
		Long: `arm-run executes ARM/Thumb application binaries written for feature-phone
platforms on a cooperative guest core with host-implemented native functions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&g.otlpEndpoint, "otlp-endpoint", "", "export task traces to this OTLP/HTTP endpoint (host:port)")
	pf.StringVar(&g.root, "root", ".", "directory guest file access is rooted at")
	pf.StringVar(&g.dbPath, "db", "", "record store directory (in-memory when empty)")
	pf.Uint32Var(&g.width, "width", 240, "screen width in pixels")
	pf.Uint32Var(&g.height, "height", 320, "screen height in pixels")
	pf.Uint32Var(&g.config.MemorySize, "memory-size", g.config.MemorySize, "guest address space size")
	pf.Uint32Var(&g.config.HeapBase, "heap-base", g.config.HeapBase, "guest heap base address")
	pf.Uint32Var(&g.config.HeapSize, "heap-size", g.config.HeapSize, "guest heap size")
	pf.Uint32Var(&g.config.StackSize, "stack-size", g.config.StackSize, "per-task stack size")
	pf.Uint32Var(&g.config.StubCount, "stub-count", g.config.StubCount, "native function slots")

	rootCmd.AddCommand(
		newRunCmd(g),
		newBootCmd(g),
		newDebugCmd(g),
		newDisasmCmd(g),
		newLayoutCmd(g),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func addImageFlags(cmd *cobra.Command, f *imageFlags) {
	cmd.Flags().StringVar(&f.base, "base", "0x10000", "load address of the image")
	cmd.Flags().StringVar(&f.entry, "entry", "0", "entry point offset from the load address")
	cmd.Flags().BoolVar(&f.thumb, "thumb", false, "entry point is Thumb code")
	cmd.Flags().StringSliceVar(&f.args, "arg", nil, "argument word passed to the entry point (repeatable)")
}

// setup builds the logger, tracing and a runtime with the image loaded.
func setup(ctx context.Context, g *globalFlags, path string, f *imageFlags, screen platform.Screen) (*runtime.Runtime, *runtime.Image, func(), error) {
	log, err := newLogger(g.logLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	installLogger(log)

	shutdown, err := setupTracing(ctx, g.otlpEndpoint)
	if err != nil {
		return nil, nil, nil, err
	}

	fsys, err := platform.NewDirFilesystem(g.root)
	if err != nil {
		shutdown()
		return nil, nil, nil, err
	}
	db, err := platform.OpenDatabase(g.dbPath)
	if err != nil {
		shutdown()
		return nil, nil, nil, err
	}

	rt, err := runtime.New(
		runtime.WithConfig(g.config),
		runtime.WithClock(platform.NewSystemClock()),
		runtime.WithFilesystem(fsys),
		runtime.WithDatabase(db),
		runtime.WithScreen(screen),
	)
	if err != nil {
		_ = db.Close()
		shutdown()
		return nil, nil, nil, err
	}

	base, err := parseWord(f.base)
	if err != nil {
		_ = rt.Close()
		shutdown()
		return nil, nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		_ = rt.Close()
		shutdown()
		return nil, nil, nil, errors.Load("read "+path, err)
	}
	img, err := rt.LoadImage(path, base, data)
	if err != nil {
		_ = rt.Close()
		shutdown()
		return nil, nil, nil, err
	}

	cleanup := func() {
		if err := rt.Close(); err != nil {
			log.Warn("close runtime", zap.Error(err))
		}
		shutdown()
		_ = log.Sync()
	}
	return rt, img, cleanup, nil
}

func (f *imageFlags) entryPoint(img *runtime.Image) (uint32, []uint32, error) {
	off, err := parseWord(f.entry)
	if err != nil {
		return 0, nil, err
	}
	pc := img.Base + off
	if f.thumb {
		pc |= 1
	}
	args := make([]uint32, 0, len(f.args))
	for _, a := range f.args {
		v, err := parseWord(a)
		if err != nil {
			return 0, nil, err
		}
		args = append(args, v)
	}
	return pc, args, nil
}

func parseWord(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, 32)
	if err != nil {
		return 0, errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("invalid number %q", s))
	}
	return uint32(v), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var f imageFlags
	cmd := &cobra.Command{
		Use:   "run <image>",
		Short: "Load an image and call its entry point in a guest task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, img, cleanup, err := setup(ctx, g, args[0], &f, newTerminalScreen(g.width, g.height, os.Stdout))
			if err != nil {
				return err
			}
			defer cleanup()

			pc, callArgs, err := f.entryPoint(img)
			if err != nil {
				return err
			}
			task, err := rt.Start("main", pc, callArgs...)
			if err != nil {
				return err
			}
			if err := rt.Run(ctx); err != nil {
				regs := rt.Core().LastFault()
				fmt.Fprintf(os.Stderr, "guest fault, registers at fault:\n%s\n", regs.String())
				return err
			}
			fmt.Printf("result: %#x (%d)\n", task.Result(), int32(task.Result()))
			return nil
		},
	}
	addImageFlags(cmd, &f)
	return cmd
}

func newBootCmd(g *globalFlags) *cobra.Command {
	var (
		f   imageFlags
		bss string
	)
	cmd := &cobra.Command{
		Use:   "boot <image>",
		Short: "Boot a KTF executable through its vendor init sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, img, cleanup, err := setup(ctx, g, args[0], &f, newTerminalScreen(g.width, g.height, os.Stdout))
			if err != nil {
				return err
			}
			defer cleanup()

			bssSize, err := parseWord(bss)
			if err != nil {
				return err
			}
			boot, err := rt.BootKTF(img, bssSize, ktf.Env{})
			if err != nil {
				return err
			}
			if err := rt.Run(ctx); err != nil {
				return err
			}
			info := boot.Info
			fmt.Printf("name:         %s\n", info.Name)
			fmt.Printf("wipi_exe:     %#08x\n", info.WipiExe)
			fmt.Printf("fn_init:      %#08x\n", info.FnInit)
			fmt.Printf("fn_get_class: %#08x\n", info.FnGetClass)
			return nil
		},
	}
	addImageFlags(cmd, &f)
	cmd.Flags().StringVar(&bss, "bss", "0", "BSS size passed to the entry point")
	return cmd
}

func newDebugCmd(g *globalFlags) *cobra.Command {
	var f imageFlags
	cmd := &cobra.Command{
		Use:   "debug <image>",
		Short: "Step through a guest call interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			// the TUI owns the terminal, so frames stay in memory
			screen := platform.NewMemoryScreen(g.width, g.height)
			g.logLevel = "error"
			rt, img, cleanup, err := setup(ctx, g, args[0], &f, screen)
			if err != nil {
				return err
			}
			defer cleanup()

			pc, callArgs, err := f.entryPoint(img)
			if err != nil {
				return err
			}
			return runInteractive(ctx, rt, img, pc, callArgs)
		},
	}
	addImageFlags(cmd, &f)
	return cmd
}
